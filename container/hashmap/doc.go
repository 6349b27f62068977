// Package hashmap provides Map, an open-addressing hash table with linear
// probing whose slot storage comes from an alloc.Allocator.
//
// # Probing
//
// A key's probe sequence starts at hash(key) % Cap() and walks forward,
// wrapping at the end, until it reaches an unoccupied slot or the key
// itself. Capacity starts at InitialCapacity and doubles; before every
// insertion the map grows while Len() >= Cap()/2, rehashing each entry.
//
// # Removal
//
// Remove only marks the slot unoccupied. It neither leaves a tombstone nor
// shifts later entries back, so a key stored past the removed slot in the
// same probe sequence can no longer be found by Get, Find or Contains, and a
// later Set of that key stores a second copy. The entry is still visible to
// All and Keys. Callers that remove keys from colliding chains should
// rebuild the map instead.
//
// Pointers returned by Find and FindEmplace are invalidated by growth.
package hashmap
