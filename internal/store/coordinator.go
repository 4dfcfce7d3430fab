package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Coordinator owns the service's collections and their on-disk
// snapshots. Collections are created lazily and loaded from disk when a
// snapshot exists.
type Coordinator struct {
	mu          sync.Mutex
	dir         string
	collections map[string]*Collection
}

// NewCoordinator creates a coordinator persisting snapshots under dir.
// An empty dir disables persistence.
func NewCoordinator(dir string) *Coordinator {
	return &Coordinator{dir: dir, collections: make(map[string]*Collection)}
}

// Collection returns the named collection, creating it on first use.
func (c *Coordinator) Collection(name string) (*Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if col, ok := c.collections[name]; ok {
		return col, nil
	}

	col := NewCollection(name, 0)
	if c.dir != "" {
		path := c.snapshotPath(name)
		if _, err := os.Stat(path); err == nil {
			if err := col.Load(path); err != nil {
				return nil, fmt.Errorf("load collection %s: %w", name, err)
			}
		}
	}
	c.collections[name] = col
	return col, nil
}

// SaveAll snapshots every open collection. The first error is returned
// after the remaining collections are still attempted.
func (c *Coordinator) SaveAll() error {
	c.mu.Lock()
	cols := make([]*Collection, 0, len(c.collections))
	for _, col := range c.collections {
		cols = append(cols, col)
	}
	c.mu.Unlock()

	if c.dir == "" {
		return nil
	}
	var firstErr error
	for _, col := range cols {
		if err := col.Save(c.snapshotPath(col.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Coordinator) snapshotPath(name string) string {
	return filepath.Join(c.dir, name+".json")
}
