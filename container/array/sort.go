package array

import (
	"cmp"

	"github.com/joshuapare/memkit/internal/contract"
)

// Swapper is a sequence that can be permuted alongside sorted keys.
// *Array implements it.
type Swapper interface {
	Len() int
	Swap(i, j int)
}

// ExchangeSort sorts keys ascending in O(n²), applying every swap to the
// parallel sequences too.
func ExchangeSort[K cmp.Ordered](keys []K, parallel ...Swapper) {
	s := newSorter(keys, parallel, cmp.Less[K], "array.ExchangeSort")
	s.exchange()
}

// ExchangeSortDesc is ExchangeSort in descending order.
func ExchangeSortDesc[K cmp.Ordered](keys []K, parallel ...Swapper) {
	s := newSorter(keys, parallel, greater[K], "array.ExchangeSortDesc")
	s.exchange()
}

// Quicksort sorts keys ascending with Hoare partitioning around the middle
// element, applying every swap to the parallel sequences too. It is not
// stable.
func Quicksort[K cmp.Ordered](keys []K, parallel ...Swapper) {
	s := newSorter(keys, parallel, cmp.Less[K], "array.Quicksort")
	s.quick(0, len(keys)-1)
}

// QuicksortDesc is Quicksort in descending order.
func QuicksortDesc[K cmp.Ordered](keys []K, parallel ...Swapper) {
	s := newSorter(keys, parallel, greater[K], "array.QuicksortDesc")
	s.quick(0, len(keys)-1)
}

func greater[K cmp.Ordered](a, b K) bool { return cmp.Less(b, a) }

type sorter[K any] struct {
	keys     []K
	parallel []Swapper
	less     func(a, b K) bool
}

func newSorter[K any](keys []K, parallel []Swapper, less func(a, b K) bool, op string) *sorter[K] {
	for i, p := range parallel {
		if p.Len() != len(keys) {
			contract.Failf(op, "parallel sequence %d has length %d, keys have %d", i, p.Len(), len(keys))
		}
	}
	return &sorter[K]{keys: keys, parallel: parallel, less: less}
}

func (s *sorter[K]) swap(i, j int) {
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
	for _, p := range s.parallel {
		p.Swap(i, j)
	}
}

func (s *sorter[K]) exchange() {
	for i := 0; i < len(s.keys); i++ {
		for j := i + 1; j < len(s.keys); j++ {
			if s.less(s.keys[j], s.keys[i]) {
				s.swap(i, j)
			}
		}
	}
}

// quick sorts keys[lo..hi] inclusive. It recurses into the smaller side so
// stack depth stays logarithmic.
func (s *sorter[K]) quick(lo, hi int) {
	for lo < hi {
		p := s.partition(lo, hi)
		if p-lo < hi-p {
			s.quick(lo, p)
			lo = p + 1
		} else {
			s.quick(p+1, hi)
			hi = p
		}
	}
}

// partition returns p with lo <= p < hi such that every key in [lo, p] is
// not after every key in [p+1, hi]. The pivot is copied out, so swaps cannot
// move it, and both scans stop at it, which keeps them inside [lo, hi] and
// makes runs of equal keys terminate.
func (s *sorter[K]) partition(lo, hi int) int {
	pivot := s.keys[lo+(hi-lo)/2]
	i, j := lo-1, hi+1
	for {
		for {
			i++
			if !s.less(s.keys[i], pivot) {
				break
			}
		}
		for {
			j--
			if !s.less(pivot, s.keys[j]) {
				break
			}
		}
		if i >= j {
			return j
		}
		s.swap(i, j)
	}
}
