package hashmap

import (
	"hash/maphash"
	"iter"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/internal/contract"
	"github.com/joshuapare/memkit/internal/sizes"
)

// InitialCapacity is the slot count allocated on first insertion.
const InitialCapacity = 16

type slot[K comparable, V any] struct {
	key      K
	value    V
	occupied bool
}

// Map is an open-addressing hash table. The zero value is not usable; call
// New.
type Map[K comparable, V any] struct {
	slots   []slot[K, V]
	n       int
	initial int
	alloc   alloc.Allocator
	hash    func(K) uint64
}

type options[K comparable] struct {
	hash     func(K) uint64
	capacity int
}

// Option configures New.
type Option[K comparable] func(*options[K])

// WithHasher replaces the default seeded hash.
func WithHasher[K comparable](h func(K) uint64) Option[K] {
	return func(o *options[K]) { o.hash = h }
}

// WithInitialCapacity sets the slot count of the first allocation, rounded
// up to a power of two.
func WithInitialCapacity[K comparable](n int) Option[K] {
	return func(o *options[K]) { o.capacity = n }
}

// New returns an empty map whose slots come from a (Heap() when unbound).
// Slot storage is allocated on first insertion. Off-heap allocators require
// pointer-free K and V.
func New[K comparable, V any](a alloc.Allocator, opts ...Option[K]) *Map[K, V] {
	o := options[K]{capacity: InitialCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	if o.hash == nil {
		seed := maphash.MakeSeed()
		o.hash = func(k K) uint64 { return maphash.Comparable(seed, k) }
	}
	if o.capacity <= 0 {
		contract.Failf("hashmap.New", "initial capacity %d must be positive", o.capacity)
	}
	return &Map[K, V]{
		initial: sizes.CeilPow2(o.capacity),
		alloc:   a.OrHeap(),
		hash:    o.hash,
	}
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return m.n }

// Cap returns the slot count, zero before the first insertion.
func (m *Map[K, V]) Cap() int { return len(m.slots) }

// Set stores v under key.
func (m *Map[K, V]) Set(key K, v V) {
	*m.FindEmplace(key) = v
}

// FindEmplace returns a pointer to key's value, inserting the zero value
// first when key is absent. Only insertions can grow the map.
func (m *Map[K, V]) FindEmplace(key K) *V {
	if p := m.Find(key); p != nil {
		return p
	}
	for m.n >= len(m.slots)/2 {
		m.grow()
	}
	i := m.findSlot(key)
	if i < 0 {
		contract.Failf("hashmap.FindEmplace", "no free slot in %d after growth", len(m.slots))
	}
	s := &m.slots[i]
	if !s.occupied {
		s.key = key
		s.occupied = true
		m.n++
	}
	return &s.value
}

// Get returns key's value and whether it was found.
func (m *Map[K, V]) Get(key K) (V, bool) {
	if p := m.Find(key); p != nil {
		return *p, true
	}
	var zero V
	return zero, false
}

// Find returns a pointer to key's value, or nil when absent.
func (m *Map[K, V]) Find(key K) *V {
	i := m.findSlot(key)
	if i < 0 || !m.slots[i].occupied {
		return nil
	}
	return &m.slots[i].value
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	return m.Find(key) != nil
}

// Remove deletes key and reports whether it was present. See the package
// documentation for how removal interacts with probing.
func (m *Map[K, V]) Remove(key K) bool {
	i := m.findSlot(key)
	if i < 0 || !m.slots[i].occupied {
		return false
	}
	m.slots[i] = slot[K, V]{}
	m.n--
	return true
}

// All yields every entry in slot order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range m.slots {
			s := &m.slots[i]
			if s.occupied && !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Keys yields every key in slot order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Clear removes every entry and keeps the slots.
func (m *Map[K, V]) Clear() {
	clear(m.slots)
	m.n = 0
}

// Free returns the slots to the allocator. The map can be reused.
func (m *Map[K, V]) Free() {
	alloc.Release(m.alloc, m.slots)
	m.slots = nil
	m.n = 0
}

// findSlot returns the index holding key or the first unoccupied slot of its
// probe sequence, or -1 when every slot is occupied by other keys.
func (m *Map[K, V]) findSlot(key K) int {
	c := len(m.slots)
	if c == 0 {
		return -1
	}
	start := int(m.hash(key) % uint64(c))
	i := start
	for {
		s := &m.slots[i]
		if !s.occupied || s.key == key {
			return i
		}
		if i++; i == c {
			i = 0
		}
		if i == start {
			return -1
		}
	}
}

func (m *Map[K, V]) grow() {
	newCap := m.initial
	if len(m.slots) > 0 {
		newCap = len(m.slots) * 2
	}
	old := m.slots
	m.slots = alloc.Make[slot[K, V]](m.alloc, newCap)
	m.n = 0
	for i := range old {
		if old[i].occupied {
			*m.FindEmplace(old[i].key) = old[i].value
		}
	}
	alloc.Release(m.alloc, old)
}
