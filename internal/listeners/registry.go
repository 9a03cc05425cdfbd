// Package listeners keeps ordered callback lists keyed by notification kind.
package listeners

import (
	"sync"
	"sync/atomic"
)

// ID identifies one registration. The zero ID is never issued.
type ID uint64

var lastID atomic.Uint64

func nextID() ID { return ID(lastID.Add(1)) }

type entry[V any] struct {
	id ID
	fn func(V)
}

// Registry maps a kind to the ordered list of callbacks registered for it.
// It is safe for concurrent use.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K][]entry[V]
}

func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{entries: make(map[K][]entry[V])}
}

// Add appends fn to the callbacks of kind and returns its registration ID.
func (r *Registry[K, V]) Add(kind K, fn func(V)) ID {
	id := nextID()
	r.mu.Lock()
	r.entries[kind] = append(r.entries[kind], entry[V]{id: id, fn: fn})
	r.mu.Unlock()
	return id
}

// Remove drops the given registrations of kind. Without ids every callback of
// kind is dropped. Unknown ids are ignored.
func (r *Registry[K, V]) Remove(kind K, ids ...ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(ids) == 0 {
		delete(r.entries, kind)
		return
	}
	list := r.entries[kind]
	kept := list[:0:0]
	for _, e := range list {
		if !containsID(ids, e.id) {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(r.entries, kind)
		return
	}
	r.entries[kind] = kept
}

// Clear drops every registration of every kind.
func (r *Registry[K, V]) Clear() {
	r.mu.Lock()
	r.entries = make(map[K][]entry[V])
	r.mu.Unlock()
}

// Has reports whether id is still registered under kind.
func (r *Registry[K, V]) Has(kind K, id ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries[kind] {
		if e.id == id {
			return true
		}
	}
	return false
}

// Len returns the number of callbacks registered under kind.
func (r *Registry[K, V]) Len(kind K) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[kind])
}

// Kinds returns every kind that has at least one callback.
func (r *Registry[K, V]) Kinds() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]K, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	return out
}

// Emit calls the callbacks of kind in registration order with v. The list is
// captured before the first call; a callback removed while Emit runs is
// skipped if it has not been reached yet.
func (r *Registry[K, V]) Emit(kind K, v V) {
	r.mu.RLock()
	snapshot := append([]entry[V](nil), r.entries[kind]...)
	r.mu.RUnlock()
	for _, e := range snapshot {
		if !r.Has(kind, e.id) {
			continue
		}
		e.fn(v)
	}
}

// Call invokes the single registration id of kind with v, if it still exists.
func (r *Registry[K, V]) Call(kind K, id ID, v V) bool {
	r.mu.RLock()
	var fn func(V)
	for _, e := range r.entries[kind] {
		if e.id == id {
			fn = e.fn
			break
		}
	}
	r.mu.RUnlock()
	if fn == nil {
		return false
	}
	fn(v)
	return true
}

func containsID(ids []ID, id ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
