// Package vectorstore selects and wires the vector index backend. The
// managed Pinecone index is the default; pgvector and an embedded chromem
// store implement the same surface for self-hosted and offline use.
package vectorstore

import (
	"context"
	"fmt"

	"advisory-rag/internal/config"
	"advisory-rag/internal/models"
	"advisory-rag/internal/vectorstore/chromemdb"
	"advisory-rag/internal/vectorstore/pgvector"
	"advisory-rag/internal/vectorstore/pinecone"
)

// Store is what the ingestion pipeline and query service need from a
// vector index.
type Store interface {
	// EnsureIndex checks that the index exists with the given dimension and
	// creates it when absent. It reports whether it had to create it.
	EnsureIndex(ctx context.Context, dimension int) (created bool, err error)
	// Upsert writes records keyed by ID, overwriting existing vectors.
	Upsert(ctx context.Context, records []models.VectorRecord) error
	// Query returns up to topK nearest neighbors of vector, restricted to
	// metadata matching filter when filter is non-empty.
	Query(ctx context.Context, vector []float32, topK int, filter models.Filter) ([]models.Match, error)
}

// New builds the configured backend.
func New(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "pinecone":
		if cfg.Pinecone == nil {
			return nil, &models.ConfigurationError{Reason: "pinecone backend selected but not configured"}
		}
		return pinecone.New(*cfg.Pinecone), nil
	case "pgvector":
		if cfg.Pgvector == nil || cfg.Pgvector.DSN == "" {
			return nil, &models.ConfigurationError{Reason: "pgvector backend needs a dsn"}
		}
		return pgvector.New(*cfg.Pgvector), nil
	case "chromem":
		if cfg.Chromem == nil || cfg.Chromem.Path == "" {
			return nil, &models.ConfigurationError{Reason: "chromem backend needs a path"}
		}
		return chromemdb.New(*cfg.Chromem)
	default:
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("unknown store backend %q", cfg.Backend)}
	}
}
