package testutil

import (
	"fmt"
	"sync"
)

// StaticDirectory resolves identifiers from a fixed table and counts lookups.
//
// Keys are compared with fmt.Sprint, so 5, int64(5) and "5" all match an
// entry registered under 5.
//
// Thread-safety: safe for concurrent use via internal mutex.
type StaticDirectory struct {
	mu       sync.Mutex
	entities map[string]any
	lookups  int
}

// NewStaticDirectory creates a directory from id/entity pairs.
func NewStaticDirectory(entities map[any]any) *StaticDirectory {
	d := &StaticDirectory{entities: make(map[string]any, len(entities))}
	for id, e := range entities {
		d.entities[fmt.Sprint(id)] = e
	}
	return d
}

// Resolve returns the entity registered under id.
func (d *StaticDirectory) Resolve(id any) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lookups++
	e, ok := d.entities[fmt.Sprint(id)]
	if !ok {
		return nil, fmt.Errorf("no entity for %v", id)
	}
	return e, nil
}

// Lookups returns how many times Resolve has been called.
func (d *StaticDirectory) Lookups() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookups
}
