package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Compile-time interface check.
var _ Store = (*Postgres)(nil)

// ddlCorrectionResults returns the history DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time; changing it afterwards requires a manual schema update.
func ddlCorrectionResults(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS correction_results (
    id             BIGSERIAL    PRIMARY KEY,
    original_text  TEXT         NOT NULL,
    clean_text     TEXT         NOT NULL,
    corrections    JSONB        NOT NULL DEFAULT '[]',
    strategy       TEXT         NOT NULL DEFAULT '',
    model          TEXT         NOT NULL DEFAULT '',
    embedding      vector(%d),
    created_at     TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_correction_results_created_at
    ON correction_results (created_at DESC);

CREATE INDEX IF NOT EXISTS idx_correction_results_embedding
    ON correction_results USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the correction_results table and the pgvector
// extension exist. Idempotent and safe to run on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlCorrectionResults(embeddingDimensions)); err != nil {
		return fmt.Errorf("history migrate: %w", err)
	}
	return nil
}

// Postgres is the PostgreSQL-backed [Store]. Correction spans are stored as
// a JSONB payload and the original text's embedding in a pgvector column
// with an HNSW index for approximate nearest-neighbour search.
//
// All methods are safe for concurrent use.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a [Postgres] store, establishes a connection pool to
// the database at dsn, registers pgvector types on every connection, and
// runs [Migrate].
//
// embeddingDimensions must match the output dimension of the configured
// embeddings model (e.g., 1536 for OpenAI text-embedding-3-small, 768 for
// nomic-embed-text).
func NewPostgres(ctx context.Context, dsn string, embeddingDimensions int) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so the embedding
	// column can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: migrate: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Save implements [Store].
func (p *Postgres) Save(ctx context.Context, rec Record) (Record, error) {
	payload, err := json.Marshal(rec.Corrections)
	if err != nil {
		return Record{}, fmt.Errorf("history store: marshal corrections: %w", err)
	}

	var vec *pgvector.Vector
	if len(rec.Embedding) > 0 {
		v := pgvector.NewVector(rec.Embedding)
		vec = &v
	}

	const q = `
		INSERT INTO correction_results
		    (original_text, clean_text, corrections, strategy, model, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err = p.pool.QueryRow(ctx, q,
		rec.OriginalText,
		rec.CleanText,
		payload,
		rec.Strategy,
		rec.Model,
		vec,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("history store: save: %w", err)
	}
	return rec, nil
}

// Recent implements [Store].
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Record, error) {
	const q = `
		SELECT id, original_text, clean_text, corrections, strategy, model, embedding, created_at
		FROM   correction_results
		ORDER  BY created_at DESC, id DESC
		LIMIT  $1`

	rows, err := p.pool.Query(ctx, q, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history store: recent: %w", err)
	}

	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("history store: scan rows: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Similar implements [Store]. Results are ordered by ascending cosine
// distance (most similar first). Records stored without an embedding are
// excluded.
func (p *Postgres) Similar(ctx context.Context, embedding []float32, limit int) ([]SimilarResult, error) {
	const q = `
		SELECT id, original_text, clean_text, corrections, strategy, model, embedding, created_at,
		       embedding <=> $1 AS distance
		FROM   correction_results
		WHERE  embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $2`

	rows, err := p.pool.Query(ctx, q, pgvector.NewVector(embedding), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history store: similar: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SimilarResult, error) {
		var (
			sr      SimilarResult
			payload []byte
			vec     *pgvector.Vector
		)
		if err := row.Scan(
			&sr.ID,
			&sr.OriginalText,
			&sr.CleanText,
			&payload,
			&sr.Strategy,
			&sr.Model,
			&vec,
			&sr.CreatedAt,
			&sr.Distance,
		); err != nil {
			return SimilarResult{}, err
		}
		if err := json.Unmarshal(payload, &sr.Corrections); err != nil {
			return SimilarResult{}, err
		}
		if vec != nil {
			sr.Embedding = vec.Slice()
		}
		return sr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history store: scan rows: %w", err)
	}
	if results == nil {
		results = []SimilarResult{}
	}
	return results, nil
}

// Ping implements [Store].
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close implements [Store]. It releases all pooled connections.
func (p *Postgres) Close() {
	p.pool.Close()
}

// scanRecord scans one correction_results row into a [Record].
func scanRecord(row pgx.CollectableRow) (Record, error) {
	var (
		rec     Record
		payload []byte
		vec     *pgvector.Vector
	)
	if err := row.Scan(
		&rec.ID,
		&rec.OriginalText,
		&rec.CleanText,
		&payload,
		&rec.Strategy,
		&rec.Model,
		&vec,
		&rec.CreatedAt,
	); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal(payload, &rec.Corrections); err != nil {
		return Record{}, err
	}
	if vec != nil {
		rec.Embedding = vec.Slice()
	}
	return rec, nil
}
