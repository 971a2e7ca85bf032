package history

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Store = (*Memory)(nil)

// Memory is an in-memory [Store]. It backs tests and deployments that run
// without a PostgreSQL DSN. Records live for the process lifetime only.
//
// Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	nextID  int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

// Save implements [Store].
func (m *Memory) Save(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = m.nextID
	m.nextID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records = append(m.records, rec)
	return rec, nil
}

// Recent implements [Store]. Records are returned newest first.
func (m *Memory) Recent(_ context.Context, limit int) ([]Record, error) {
	limit = clampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.records)
	if limit > n {
		limit = n
	}
	out := make([]Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// Similar implements [Store] with a linear scan over stored embeddings.
// Fine for the in-memory store's scale; the Postgres store uses an HNSW
// index instead.
func (m *Memory) Similar(_ context.Context, embedding []float32, limit int) ([]SimilarResult, error) {
	limit = clampLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SimilarResult, 0, limit)
	for _, rec := range m.records {
		if len(rec.Embedding) == 0 || len(rec.Embedding) != len(embedding) {
			continue
		}
		results = append(results, SimilarResult{
			Record:   rec,
			Distance: cosineDistance(embedding, rec.Embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Ping implements [Store]. The in-memory store is always reachable.
func (m *Memory) Ping(context.Context) error { return nil }

// Close implements [Store]. No resources to release.
func (m *Memory) Close() {}

// Len reports how many records are stored. Intended for tests.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// cosineDistance returns 1 - cosine similarity, matching pgvector's <=>
// operator. Degenerate (zero-magnitude) vectors yield the maximum distance.
func cosineDistance(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(magA)*math.Sqrt(magB))
}
