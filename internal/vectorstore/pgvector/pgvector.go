// Package pgvector stores advisory vectors in Postgres with the pgvector
// extension, for self-hosted setups that want the index next to their data.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"advisory-rag/internal/config"
	"advisory-rag/internal/models"
)

type chunkRow struct {
	bun.BaseModel `bun:"table:advisory_chunks,alias:ac"`
	ID            string  `bun:"id,pk"`
	Embedding     string  `bun:"embedding,notnull"`
	CountryName   string  `bun:"country_name,notnull"`
	ISO3          string  `bun:"iso3,notnull"`
	Warning       bool    `bun:"warning,notnull"`
	Content       string  `bun:"content,notnull"`
	ChunkIndex    int     `bun:"chunk_index,notnull"`
	TotalChunks   int     `bun:"total_chunks,notnull"`
	Score         float64 `bun:"score,scanonly"`
}

type Store struct {
	db    *bun.DB
	table string
}

func New(cfg config.PgvectorConfig) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	table := cfg.Table
	if table == "" {
		table = "advisory_chunks"
	}
	return &Store{db: db, table: table}
}

// EnsureIndex creates the extension and chunk table when they are missing.
func (s *Store) EnsureIndex(ctx context.Context, dimension int) (bool, error) {
	if dimension <= 0 {
		return false, &models.ConfigurationError{Reason: fmt.Sprintf("invalid index dimension %d", dimension)}
	}
	var exists bool
	if err := s.db.NewSelect().ColumnExpr("to_regclass(?) IS NOT NULL", s.table).Scan(ctx, &exists); err != nil {
		return false, &models.ProviderError{Provider: "pgvector", Op: "check table", Err: err}
	}
	if exists {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return false, &models.ProviderError{Provider: "pgvector", Op: "create extension", Err: err}
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS ? (
		id text PRIMARY KEY,
		embedding vector(%d) NOT NULL,
		country_name text NOT NULL,
		iso3 text NOT NULL,
		warning boolean NOT NULL,
		content text NOT NULL,
		chunk_index integer NOT NULL,
		total_chunks integer NOT NULL
	)`, dimension)
	if _, err := s.db.ExecContext(ctx, ddl, bun.Ident(s.table)); err != nil {
		return false, &models.ProviderError{Provider: "pgvector", Op: "create table", Err: err}
	}
	return true, nil
}

// Upsert inserts records, replacing rows that share an ID.
func (s *Store) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]chunkRow, len(records))
	for i, rec := range records {
		rows[i] = chunkRow{
			ID:          rec.ID,
			Embedding:   vectorLiteral(rec.Vector),
			CountryName: rec.Metadata.CountryName,
			ISO3:        rec.Metadata.ISO3,
			Warning:     rec.Metadata.Warning,
			Content:     rec.Metadata.Content,
			ChunkIndex:  rec.Metadata.ChunkIndex,
			TotalChunks: rec.Metadata.TotalChunks,
		}
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		ModelTableExpr("?", bun.Ident(s.table)).
		On("CONFLICT (id) DO UPDATE").
		Set("embedding = EXCLUDED.embedding").
		Set("country_name = EXCLUDED.country_name").
		Set("iso3 = EXCLUDED.iso3").
		Set("warning = EXCLUDED.warning").
		Set("content = EXCLUDED.content").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("total_chunks = EXCLUDED.total_chunks").
		Exec(ctx)
	if err != nil {
		return &models.ProviderError{Provider: "pgvector", Op: "upsert", Err: err}
	}
	return nil
}

// Query orders by cosine distance and reports 1 - distance as the score,
// matching the similarity scale of the managed index.
func (s *Store) Query(ctx context.Context, queryVector []float32, topK int, filter models.Filter) ([]models.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	literal := vectorLiteral(queryVector)
	var rows []chunkRow
	q := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr("? AS ac", bun.Ident(s.table)).
		Column("id", "country_name", "iso3", "warning", "content", "chunk_index", "total_chunks").
		ColumnExpr("1 - (embedding <=> ?::vector) AS score", literal).
		OrderExpr("embedding <=> ?::vector", literal).
		Limit(topK)
	for field, value := range filter {
		column, err := filterColumn(field)
		if err != nil {
			return nil, err
		}
		q = q.Where("? = ?", bun.Ident(column), value)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, &models.ProviderError{Provider: "pgvector", Op: "query", Err: err}
	}
	matches := make([]models.Match, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, models.Match{
			ID:    row.ID,
			Score: row.Score,
			Metadata: models.Metadata{
				CountryName: row.CountryName,
				ISO3:        row.ISO3,
				Warning:     row.Warning,
				Content:     row.Content,
				ChunkIndex:  row.ChunkIndex,
				TotalChunks: row.TotalChunks,
			},
		})
	}
	return matches, nil
}

func filterColumn(field string) (string, error) {
	switch field {
	case "countryName":
		return "country_name", nil
	case "iso3Code":
		return "iso3", nil
	case "warning":
		return "warning", nil
	default:
		return "", &models.ConfigurationError{Reason: fmt.Sprintf("unsupported filter field %q", field)}
	}
}

// vectorLiteral renders the pgvector input syntax. Values travel as text
// and Postgres coerces them to the vector column type.
func vectorLiteral(vector []float32) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
