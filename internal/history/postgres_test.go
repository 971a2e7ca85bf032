package history_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redlinehq/redline/internal/annotate"
	"github.com/redlinehq/redline/internal/history"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if REDLINE_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("REDLINE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("REDLINE_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [history.Postgres] with a clean table and
// registers cleanup to close it when the test finishes.
func newTestStore(t *testing.T) *history.Postgres {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS correction_results"); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	store, err := history.NewPostgres(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestPostgres_SaveRecentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, history.Record{
		OriginalText: "He go home.",
		CleanText:    "He goes home.",
		Corrections: []annotate.Correction{
			{Original: "go", Corrected: "goes", Type: annotate.TypeGrammar, StartIndex: 3, EndIndex: 8},
		},
		Strategy:  "structural",
		Model:     "gpt-4o-mini",
		Embedding: []float32{0.1, 0.2, 0.3, 0.4},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == 0 {
		t.Error("Save should assign a non-zero ID")
	}
	if saved.CreatedAt.IsZero() {
		t.Error("Save should assign CreatedAt")
	}

	recs, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records: got %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.CleanText != "He goes home." {
		t.Errorf("CleanText: got %q", rec.CleanText)
	}
	if len(rec.Corrections) != 1 || rec.Corrections[0].Corrected != "goes" {
		t.Errorf("corrections did not survive the JSONB round trip: %+v", rec.Corrections)
	}
	if len(rec.Embedding) != testEmbeddingDim {
		t.Errorf("embedding: got %d dimensions, want %d", len(rec.Embedding), testEmbeddingDim)
	}
}

func TestPostgres_SaveWithoutEmbedding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, history.Record{OriginalText: "plain", CleanText: "plain"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	recs, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records: got %d, want 1", len(recs))
	}
	if len(recs[0].Embedding) != 0 {
		t.Errorf("embedding should be empty, got %v", recs[0].Embedding)
	}

	// Unembedded records must be invisible to Similar.
	results, err := store.Similar(ctx, []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Similar should exclude unembedded records, got %d", len(results))
	}
}

func TestPostgres_SimilarOrdersByDistance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saves := []history.Record{
		{OriginalText: "identical", Embedding: []float32{1, 0, 0, 0}},
		{OriginalText: "orthogonal", Embedding: []float32{0, 1, 0, 0}},
		{OriginalText: "close", Embedding: []float32{0.9, 0.1, 0, 0}},
	}
	for _, rec := range saves {
		if _, err := store.Save(ctx, rec); err != nil {
			t.Fatalf("Save %q: %v", rec.OriginalText, err)
		}
	}

	results, err := store.Similar(ctx, []float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: got %d, want 2", len(results))
	}
	if results[0].OriginalText != "identical" {
		t.Errorf("closest: got %q, want %q", results[0].OriginalText, "identical")
	}
	if results[1].OriginalText != "close" {
		t.Errorf("second: got %q, want %q", results[1].OriginalText, "close")
	}
	if results[0].Distance > results[1].Distance {
		t.Error("results should be ordered by ascending distance")
	}
}

func TestPostgres_Ping(t *testing.T) {
	store := newTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
