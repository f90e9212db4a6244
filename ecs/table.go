package ecs

import (
	"slices"
	"sync"
)

// Storage is the kind-erased view of a component table used by queries.
type Storage interface {
	Has(id EntityID) bool
	Remove(id EntityID) bool
	Len() int
	// IDs returns a snapshot of the entity ids in ascending order.
	IDs() []EntityID
}

// Table stores one component value per entity.
// Lookups are keyed by entity id; the table itself is the component kind.
type Table[T any] struct {
	mu     sync.RWMutex
	values map[EntityID]T
	order  []EntityID // sorted ascending
}

// NewTable creates an empty component table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{values: make(map[EntityID]T)}
}

// Set stores v for id, replacing any previous value.
func (t *Table[T]) Set(id EntityID, v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.values[id]; !ok {
		i, _ := slices.BinarySearch(t.order, id)
		t.order = slices.Insert(t.order, i, id)
	}
	t.values[id] = v
}

// Get returns the component of id.
func (t *Table[T]) Get(id EntityID) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[id]
	return v, ok
}

// Update applies fn to the component of id in place.
// It reports false and does nothing if id has no component.
func (t *Table[T]) Update(id EntityID, fn func(*T)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.values[id]
	if !ok {
		return false
	}
	fn(&v)
	t.values[id] = v
	return true
}

// Has implements Storage.
func (t *Table[T]) Has(id EntityID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.values[id]
	return ok
}

// Remove implements Storage.
func (t *Table[T]) Remove(id EntityID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.values[id]; !ok {
		return false
	}
	delete(t.values, id)
	if i, found := slices.BinarySearch(t.order, id); found {
		t.order = slices.Delete(t.order, i, i+1)
	}
	return true
}

// Len implements Storage.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values)
}

// IDs implements Storage.
func (t *Table[T]) IDs() []EntityID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.order)
}
