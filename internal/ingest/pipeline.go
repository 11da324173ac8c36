// Package ingest drives the chunk, embed and upsert pass over the country
// dataset.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"advisory-rag/internal/chunker"
	"advisory-rag/internal/dataset"
	"advisory-rag/internal/ledger"
	"advisory-rag/internal/models"
	"advisory-rag/internal/vectorstore"
)

// Embedder is the slice of the embedding client the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options tune one pipeline instance.
type Options struct {
	IndexName string
	Dimension int
	Workers   int
}

// Summary reports what a run did.
type Summary struct {
	RunID          string
	IndexCreated   bool
	Countries      int
	ChunksUpserted int
	ChunksFailed   int
	Duration       time.Duration
}

type Pipeline struct {
	data     *dataset.Store
	splitter *chunker.Splitter
	embedder Embedder
	store    vectorstore.Store
	ledger   *ledger.Ledger
	opts     Options
}

// New assembles a pipeline. The ledger may be nil, in which case outcomes
// are only logged.
func New(data *dataset.Store, splitter *chunker.Splitter, embedder Embedder, store vectorstore.Store, led *ledger.Ledger, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Pipeline{
		data:     data,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		ledger:   led,
		opts:     opts,
	}
}

// Run checks the index once, then walks every country: concatenate
// "name: content", split into chunks, embed and upsert each chunk. A chunk
// failure is logged, recorded and skipped; it never aborts the run.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	created, err := p.store.EnsureIndex(ctx, p.opts.Dimension)
	if err != nil {
		return summary, fmt.Errorf("ensure index: %w", err)
	}
	summary.IndexCreated = created
	if created {
		log.Info().Str("index", p.opts.IndexName).Int("dimension", p.opts.Dimension).Msg("index created")
	} else {
		log.Debug().Str("index", p.opts.IndexName).Msg("index already exists")
	}

	if p.ledger != nil {
		runID, err := p.ledger.BeginRun(ctx, p.opts.IndexName)
		if err != nil {
			return summary, fmt.Errorf("begin ledger run: %w", err)
		}
		summary.RunID = runID
	}

	for _, country := range p.data.All() {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		text := fmt.Sprintf("%s: %s", country.CountryName, country.Content)
		chunks := p.splitter.Split(country.CountryName, text)
		if len(chunks) == 0 {
			log.Warn().Str("iso3", country.ISO3).Msg("country produced no chunks")
			continue
		}
		upserted, failed := p.ingestCountry(ctx, summary.RunID, country, chunks)
		summary.Countries++
		summary.ChunksUpserted += upserted
		summary.ChunksFailed += failed
		log.Debug().Str("iso3", country.ISO3).Int("chunks", len(chunks)).Int("failed", failed).Msg("country ingested")
	}

	if p.ledger != nil && summary.RunID != "" {
		total := summary.ChunksUpserted + summary.ChunksFailed
		if err := p.ledger.FinishRun(ctx, summary.RunID, summary.Countries, total, summary.ChunksFailed); err != nil {
			log.Warn().Err(err).Msg("sealing ledger run failed")
		}
	}
	summary.Duration = time.Since(start)
	log.Info().
		Int("countries", summary.Countries).
		Int("upserted", summary.ChunksUpserted).
		Int("failed", summary.ChunksFailed).
		Dur("took", summary.Duration).
		Msg("ingestion finished")
	return summary, nil
}

// ingestCountry fans chunk work out to at most Workers goroutines. Vector
// IDs derive from the chunk index, so dispatch order cannot change them.
func (p *Pipeline) ingestCountry(ctx context.Context, runID string, country models.CountryRecord, chunks []models.Chunk) (upserted, failed int) {
	total := len(chunks)
	if p.opts.Workers <= 1 {
		for i, chunk := range chunks {
			if p.ingestChunk(ctx, runID, country, chunk, i, total) {
				upserted++
			} else {
				failed++
			}
		}
		return upserted, failed
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, p.opts.Workers)
	)
	for i, chunk := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, chunk models.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()
			ok := p.ingestChunk(ctx, runID, country, chunk, i, total)
			mu.Lock()
			if ok {
				upserted++
			} else {
				failed++
			}
			mu.Unlock()
		}(i, chunk)
	}
	wg.Wait()
	return upserted, failed
}

func (p *Pipeline) ingestChunk(ctx context.Context, runID string, country models.CountryRecord, chunk models.Chunk, index, total int) bool {
	vectorID := models.VectorID(country.ISO3, index)

	vector, err := p.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		log.Error().Err(err).Str("vector_id", vectorID).Msg("embedding chunk failed")
		p.recordChunk(ctx, runID, country, chunk, vectorID, index, ledger.StatusFailed, err)
		return false
	}

	record := models.VectorRecord{
		ID:     vectorID,
		Vector: vector,
		Metadata: models.Metadata{
			CountryName: country.CountryName,
			ISO3:        country.ISO3,
			Warning:     country.Warning,
			Content:     chunk.Text,
			ChunkIndex:  index,
			TotalChunks: total,
		},
	}
	if err := p.store.Upsert(ctx, []models.VectorRecord{record}); err != nil {
		log.Error().Err(err).Str("vector_id", vectorID).Msg("upserting chunk failed")
		p.recordChunk(ctx, runID, country, chunk, vectorID, index, ledger.StatusFailed, err)
		return false
	}

	p.recordChunk(ctx, runID, country, chunk, vectorID, index, ledger.StatusUpserted, nil)
	log.Debug().Str("vector_id", vectorID).Int("tokens", chunk.TokenCount).Msg("chunk upserted")
	return true
}

func (p *Pipeline) recordChunk(ctx context.Context, runID string, country models.CountryRecord, chunk models.Chunk, vectorID string, index int, status ledger.ChunkStatus, cause error) {
	if p.ledger == nil || runID == "" {
		return
	}
	rec := ledger.ChunkRecord{
		RunID:      runID,
		VectorID:   vectorID,
		ISO3:       country.ISO3,
		ChunkIndex: index,
		TokenCount: chunk.TokenCount,
		Status:     status,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := p.ledger.RecordChunk(ctx, rec); err != nil {
		log.Warn().Err(err).Str("vector_id", vectorID).Msg("ledger write failed")
	}
}
