// Package store keeps embedded records in in-memory HNSW collections
// with JSON snapshots on disk.
package store

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// Collection names managed by the Coordinator. Each artifact class gets
// an overview collection and a chunk collection.
const (
	DocumentOverview   = "document_overview"
	DocumentChunk      = "document_chunk"
	RepositoryOverview = "repository_overview"
	RepositoryChunk    = "repository_chunk"
)

// searchOversample is how many extra candidates a filtered search pulls
// from the graph before applying the metadata filter.
const searchOversample = 4

// Record is one stored unit: an overview or a chunk with its embedding.
type Record struct {
	ID      string         `json:"id"`
	Content string         `json:"content"`
	Meta    map[string]any `json:"meta"`
	Vector  []float32      `json:"vector"`
}

// Hit is a search result with its cosine similarity score.
type Hit struct {
	Record Record
	Score  float32
}

// Collection wraps a coder/hnsw graph with string IDs and record
// metadata. Deleted nodes are orphaned in the graph rather than removed;
// deleting the last graph node corrupts coder/hnsw.
type Collection struct {
	mu   sync.RWMutex
	name string
	dims int

	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	records map[string]Record
}

func NewCollection(name string, dims int) *Collection {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	return &Collection{
		name:    name,
		dims:    dims,
		graph:   graph,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
		records: make(map[string]Record),
	}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Upsert inserts records, replacing any with the same ID.
func (c *Collection) Upsert(records []Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range records {
		if c.dims == 0 {
			c.dims = len(rec.Vector)
		}
		if len(rec.Vector) != c.dims {
			return fmt.Errorf("collection %s: vector dimension mismatch: expected %d, got %d", c.name, c.dims, len(rec.Vector))
		}
	}

	for _, rec := range records {
		if key, exists := c.idMap[rec.ID]; exists {
			delete(c.keyMap, key)
			delete(c.idMap, rec.ID)
		}

		key := c.nextKey
		c.nextKey++

		vec := make([]float32, len(rec.Vector))
		copy(vec, rec.Vector)
		normalizeInPlace(vec)

		c.graph.Add(hnsw.MakeNode(key, vec))
		c.idMap[rec.ID] = key
		c.keyMap[key] = rec.ID
		c.records[rec.ID] = rec
	}
	return nil
}

// Search returns up to k records nearest to query that pass the filter.
// A nil filter matches everything. The graph is oversampled so filtered
// results still fill k when enough records qualify.
func (c *Collection) Search(query []float32, k int, filter Filter) ([]Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if k <= 0 || c.graph.Len() == 0 {
		return nil, nil
	}
	if len(query) != c.dims {
		return nil, fmt.Errorf("collection %s: query dimension mismatch: expected %d, got %d", c.name, c.dims, len(query))
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	fetch := k * searchOversample
	if fetch > c.graph.Len() {
		fetch = c.graph.Len()
	}

	nodes := c.graph.Search(q, fetch)
	hits := make([]Hit, 0, k)
	for _, node := range nodes {
		id, ok := c.keyMap[node.Key]
		if !ok {
			continue // lazily deleted
		}
		rec := c.records[id]
		if filter != nil && !filter.Matches(rec.Meta) {
			continue
		}
		dist := c.graph.Distance(q, node.Value)
		hits = append(hits, Hit{Record: rec, Score: 1 - dist/2})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Get returns the record with the given ID.
func (c *Collection) Get(id string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[id]
	return rec, ok
}

// Delete removes records by ID. Missing IDs are ignored.
func (c *Collection) Delete(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.deleteLocked(id)
	}
}

// DeleteByPrefix removes every record whose ID starts with prefix and
// returns how many were removed. Used to replace a repository file's
// chunks before re-indexing it.
func (c *Collection) DeleteByPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var victims []string
	for id := range c.records {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			victims = append(victims, id)
		}
	}
	for _, id := range victims {
		c.deleteLocked(id)
	}
	return len(victims)
}

func (c *Collection) deleteLocked(id string) {
	key, exists := c.idMap[id]
	if !exists {
		return
	}
	delete(c.keyMap, key)
	delete(c.idMap, id)
	delete(c.records, id)
}

// Count returns the number of live records.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

type snapshot struct {
	Name    string   `json:"name"`
	Dims    int      `json:"dims"`
	Records []Record `json:"records"`
}

// Save writes an atomic JSON snapshot of the collection.
func (c *Collection) Save(path string) error {
	c.mu.RLock()
	snap := snapshot{Name: c.name, Dims: c.dims, Records: make([]Record, 0, len(c.records))}
	for _, rec := range c.records {
		snap.Records = append(snap.Records, rec)
	}
	c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load replaces the collection contents from a snapshot, rebuilding the
// graph from the stored vectors.
func (c *Collection) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	fresh := NewCollection(snap.Name, snap.Dims)
	if err := fresh.Upsert(snap.Records); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dims = fresh.dims
	c.graph = fresh.graph
	c.idMap = fresh.idMap
	c.keyMap = fresh.keyMap
	c.nextKey = fresh.nextKey
	c.records = fresh.records
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
