// Package history persists correction results and serves them back, either
// as a recency listing or as a vector-similarity lookup over past
// submissions ("show me texts with the same kinds of mistakes").
//
// Two implementations exist: [Memory] for tests and DSN-less deployments,
// and [Postgres] backed by a pgvector-enabled PostgreSQL database. Both
// treat the stored result as an opaque payload — the store never inspects
// or rewrites correction spans.
package history

import (
	"context"
	"time"

	"github.com/redlinehq/redline/internal/annotate"
)

// DefaultRecentLimit is used by Recent when the caller passes limit <= 0.
const DefaultRecentLimit = 20

// Record is one stored correction result.
type Record struct {
	ID           int64                 `json:"id"`
	OriginalText string                `json:"originalText"`
	CleanText    string                `json:"cleanText"`
	Corrections  []annotate.Correction `json:"corrections"`
	Strategy     string                `json:"strategy"`
	Model        string                `json:"model"`

	// Embedding is the vector for the original text, when an embeddings
	// provider is configured. Empty records are stored without one and are
	// invisible to Similar.
	Embedding []float32 `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// SimilarResult is a [Record] with its cosine distance to the query vector.
// Smaller distances mean more similar texts.
type SimilarResult struct {
	Record
	Distance float64 `json:"distance"`
}

// Store is the persistence abstraction for correction results.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists rec and returns it with ID and CreatedAt assigned.
	Save(ctx context.Context, rec Record) (Record, error)

	// Recent returns up to limit records, newest first. A non-positive
	// limit selects [DefaultRecentLimit].
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Similar returns up to limit records whose embeddings are closest
	// (cosine distance) to embedding, most similar first. Records stored
	// without an embedding are never returned.
	Similar(ctx context.Context, embedding []float32, limit int) ([]SimilarResult, error)

	// Ping reports whether the store is reachable. Used by readiness checks.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close()
}

// clampLimit resolves a caller-supplied limit to an effective one.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}
