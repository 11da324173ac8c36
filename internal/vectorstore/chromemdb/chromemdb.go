// Package chromemdb keeps vectors in an embedded chromem-go store. It
// serves offline runs and tests where no managed index is reachable.
package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"advisory-rag/internal/config"
	"advisory-rag/internal/models"
)

type Store struct {
	db         *chromem.DB
	name       string
	collection *chromem.Collection
}

func New(cfg config.ChromemConfig) (*Store, error) {
	db, err := chromem.NewPersistentDB(cfg.Path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	name := cfg.Collection
	if name == "" {
		name = "travel-advisories"
	}
	return &Store{db: db, name: name}, nil
}

// EnsureIndex opens the collection, creating it when this is the first run
// against the store path.
func (s *Store) EnsureIndex(ctx context.Context, dimension int) (bool, error) {
	if dimension <= 0 {
		return false, &models.ConfigurationError{Reason: fmt.Sprintf("invalid index dimension %d", dimension)}
	}
	if s.collection != nil {
		return false, nil
	}
	if existing := s.db.GetCollection(s.name, nil); existing != nil {
		s.collection = existing
		return false, nil
	}
	collection, err := s.db.CreateCollection(s.name, nil, nil)
	if err != nil {
		return false, &models.ProviderError{Provider: "chromem", Op: "create collection", Err: err}
	}
	s.collection = collection
	return true, nil
}

func (s *Store) ensureCollection() (*chromem.Collection, error) {
	if s.collection != nil {
		return s.collection, nil
	}
	collection, err := s.db.GetOrCreateCollection(s.name, nil, nil)
	if err != nil {
		return nil, err
	}
	s.collection = collection
	return collection, nil
}

// Upsert adds documents with precomputed embeddings. chromem overwrites on
// ID collision, so re-ingesting a country replaces its chunks.
func (s *Store) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	collection, err := s.ensureCollection()
	if err != nil {
		return &models.ProviderError{Provider: "chromem", Op: "open collection", Err: err}
	}
	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   rec.Metadata.Content,
			Embedding: rec.Vector,
			Metadata:  metadataToMap(rec.Metadata),
		}
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return &models.ProviderError{Provider: "chromem", Op: "upsert", Err: err}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, queryVector []float32, topK int, filter models.Filter) ([]models.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	collection, err := s.ensureCollection()
	if err != nil {
		return nil, &models.ProviderError{Provider: "chromem", Op: "open collection", Err: err}
	}
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	// chromem rejects nResults above the document count.
	if topK > count {
		topK = count
	}
	where, err := whereMap(filter)
	if err != nil {
		return nil, err
	}
	results, err := collection.QueryEmbedding(ctx, queryVector, topK, where, nil)
	if err != nil {
		return nil, &models.ProviderError{Provider: "chromem", Op: "query", Err: err}
	}
	matches := make([]models.Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, models.Match{
			ID:       r.ID,
			Score:    float64(r.Similarity),
			Metadata: metadataFromMap(r.Metadata, r.Content),
		})
	}
	return matches, nil
}

func metadataToMap(md models.Metadata) map[string]string {
	return map[string]string{
		"countryName": md.CountryName,
		"iso3Code":    md.ISO3,
		"warning":     strconv.FormatBool(md.Warning),
		"chunkIndex":  strconv.Itoa(md.ChunkIndex),
		"totalChunks": strconv.Itoa(md.TotalChunks),
	}
}

func metadataFromMap(m map[string]string, content string) models.Metadata {
	warning, _ := strconv.ParseBool(m["warning"])
	chunkIndex, _ := strconv.Atoi(m["chunkIndex"])
	totalChunks, _ := strconv.Atoi(m["totalChunks"])
	return models.Metadata{
		CountryName: m["countryName"],
		ISO3:        m["iso3Code"],
		Warning:     warning,
		Content:     content,
		ChunkIndex:  chunkIndex,
		TotalChunks: totalChunks,
	}
}

// whereMap renders the equality filter in chromem's string-typed form.
func whereMap(filter models.Filter) (map[string]string, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	where := make(map[string]string, len(filter))
	for field, value := range filter {
		switch v := value.(type) {
		case string:
			where[field] = v
		case bool:
			where[field] = strconv.FormatBool(v)
		default:
			return nil, &models.ConfigurationError{Reason: fmt.Sprintf("unsupported filter value %T for %q", value, field)}
		}
	}
	return where, nil
}
