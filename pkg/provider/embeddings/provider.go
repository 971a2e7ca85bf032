// Package embeddings defines the Provider interface for vector embedding backends.
//
// An embeddings provider maps a text string to a dense float32 vector. The
// vectors back the correction-history store: each submission is embedded once
// when its result is saved, and similarity lookups compare a query vector
// against the stored ones to surface past texts with the same kinds of
// mistakes. That flow embeds one text per request, so the interface is a
// single-text one; a batch call would have no caller here.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// Every vector a single Provider instance returns has the same length,
// reported by Dimensions. The history store sizes its pgvector column from
// that value, so vectors from providers with different models must never be
// mixed in one store.
type Provider interface {
	// Embed computes the embedding vector for text. The returned slice has
	// length Dimensions(). Text is passed to the backend verbatim; any
	// model-specific prefixing is the caller's job.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed length of every vector this provider
	// produces. Constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the backend's model identifier, e.g.
	// "text-embedding-3-small" or "nomic-embed-text". Stored alongside
	// vectors so a model change is detectable.
	ModelID() string
}
