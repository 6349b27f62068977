package array

// Index returns the index of the first element equal to v, or -1.
func Index[T comparable](a *Array[T], v T) int {
	for i, x := range a.Items() {
		if x == v {
			return i
		}
	}
	return -1
}

// Contains reports whether a holds v.
func Contains[T comparable](a *Array[T], v T) bool {
	return Index(a, v) >= 0
}

// IndexFunc returns the index of the first element satisfying f, or -1.
func (a *Array[T]) IndexFunc(f func(T) bool) int {
	for i, x := range a.Items() {
		if f(x) {
			return i
		}
	}
	return -1
}

// IndexBy returns the index of the first element whose key equals k, or -1.
func IndexBy[T any, K comparable](a *Array[T], key func(T) K, k K) int {
	return a.IndexFunc(func(x T) bool { return key(x) == k })
}
