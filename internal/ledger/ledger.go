// Package ledger records ingestion outcomes in a local sqlite file so runs
// can be audited after the fact and failed chunks replayed by hand.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"advisory-rag/internal/helper"
)

// ChunkStatus is the outcome recorded for one chunk.
type ChunkStatus string

const (
	StatusUpserted ChunkStatus = "upserted"
	StatusFailed   ChunkStatus = "failed"
)

// Run summarizes one ingestion pass.
type Run struct {
	ID           string
	IndexName    string
	StartedAt    int64
	FinishedAt   int64
	Countries    int
	ChunksTotal  int
	ChunksFailed int
}

// ChunkRecord ties a vector ID to its ingestion outcome.
type ChunkRecord struct {
	RunID      string
	VectorID   string
	ISO3       string
	ChunkIndex int
	TokenCount int
	Status     ChunkStatus
	Error      string
	UpdatedAt  int64
}

type Ledger struct {
	db *sql.DB
}

// Open connects to the ledger file, creating it and its schema on first
// use. WAL mode keeps concurrent status reads cheap during a run.
func Open(ctx context.Context, path string) (*Ledger, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// SQLite tolerates one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping ledger: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_runs (
		run_id        TEXT PRIMARY KEY,
		index_name    TEXT NOT NULL,
		started_at    INTEGER NOT NULL,
		finished_at   INTEGER,
		countries     INTEGER NOT NULL DEFAULT 0,
		chunks_total  INTEGER NOT NULL DEFAULT 0,
		chunks_failed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS ingest_chunks (
		run_id      TEXT NOT NULL,
		vector_id   TEXT NOT NULL,
		iso3        TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		token_count INTEGER NOT NULL,
		status      TEXT NOT NULL,
		error       TEXT,
		updated_at  INTEGER NOT NULL,
		PRIMARY KEY (run_id, vector_id)
	);

	CREATE INDEX IF NOT EXISTS idx_ingest_chunks_status
		ON ingest_chunks (run_id, status);
	`
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

// BeginRun opens a run row and returns its ID.
func (l *Ledger) BeginRun(ctx context.Context, indexName string) (string, error) {
	runID, err := helper.NewRunID()
	if err != nil {
		return "", err
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (run_id, index_name, started_at) VALUES (?, ?, ?)`,
		runID, indexName, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return runID, nil
}

// RecordChunk stores one chunk outcome, overwriting an earlier attempt for
// the same vector within the run.
func (l *Ledger) RecordChunk(ctx context.Context, rec ChunkRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO ingest_chunks (run_id, vector_id, iso3, chunk_index, token_count, status, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, vector_id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		rec.RunID, rec.VectorID, rec.ISO3, rec.ChunkIndex, rec.TokenCount, string(rec.Status), rec.Error, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record chunk: %w", err)
	}
	return nil
}

// FinishRun seals the run with its totals.
func (l *Ledger) FinishRun(ctx context.Context, runID string, countries, chunksTotal, chunksFailed int) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE ingest_runs
		SET finished_at = ?, countries = ?, chunks_total = ?, chunks_failed = ?
		WHERE run_id = ?`,
		time.Now().Unix(), countries, chunksTotal, chunksFailed, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run, or nil when the ledger
// holds none.
func (l *Ledger) LastRun(ctx context.Context) (*Run, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT run_id, index_name, started_at, COALESCE(finished_at, 0), countries, chunks_total, chunks_failed
		FROM ingest_runs ORDER BY started_at DESC, run_id DESC LIMIT 1`)
	var run Run
	err := row.Scan(&run.ID, &run.IndexName, &run.StartedAt, &run.FinishedAt,
		&run.Countries, &run.ChunksTotal, &run.ChunksFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	return &run, nil
}

// FailedChunks lists the chunks that did not make it into the index during
// a run.
func (l *Ledger) FailedChunks(ctx context.Context, runID string) ([]ChunkRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, vector_id, iso3, chunk_index, token_count, status, COALESCE(error, ''), updated_at
		FROM ingest_chunks WHERE run_id = ? AND status = ? ORDER BY vector_id`,
		runID, string(StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("failed chunks: %w", err)
	}
	defer rows.Close()
	var out []ChunkRecord
	for rows.Next() {
		var rec ChunkRecord
		var status string
		if err := rows.Scan(&rec.RunID, &rec.VectorID, &rec.ISO3, &rec.ChunkIndex,
			&rec.TokenCount, &status, &rec.Error, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Status = ChunkStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
