package store

import (
	"errors"
	"sync"

	"github.com/psantana5/sitesync/pkg/models"
)

// ErrNotFound is returned when a record is not held by the store
var ErrNotFound = errors.New("record not found")

// Collection is an in-memory, id-keyed list of one entity kind. Records keep
// the order the backend returned them in.
type Collection[T models.Record] struct {
	mu      sync.RWMutex
	records []T
	index   map[string]int
}

// NewCollection creates an empty collection
func NewCollection[T models.Record]() *Collection[T] {
	return &Collection[T]{index: make(map[string]int)}
}

// ReplaceAll swaps the whole collection for records. Later duplicates of an
// id shadow earlier ones in Get but both stay in List.
func (c *Collection[T]) ReplaceAll(records []T) {
	next := make([]T, len(records))
	copy(next, records)
	index := make(map[string]int, len(next))
	for i, r := range next {
		index[r.RecordID()] = i
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = next
	c.index = index
}

// Get retrieves a record by ID
func (c *Collection[T]) Get(id string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return c.records[i], nil
}

// List returns a copy of all records
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of records held
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
