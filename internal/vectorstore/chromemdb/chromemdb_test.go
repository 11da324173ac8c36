package chromemdb

import (
	"context"
	"testing"

	"advisory-rag/internal/config"
	"advisory-rag/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(config.ChromemConfig{Path: t.TempDir(), Collection: "advisories-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func record(iso3, name string, warning bool, vector []float32) models.VectorRecord {
	return models.VectorRecord{
		ID:     models.VectorID(iso3, 0),
		Vector: vector,
		Metadata: models.Metadata{
			CountryName: name,
			ISO3:        iso3,
			Warning:     warning,
			Content:     name + ": advisory text",
			ChunkIndex:  0,
			TotalChunks: 1,
		},
	}
}

// Unit vectors keep cosine similarity exact regardless of normalization.
func seed(t *testing.T, s *Store) {
	t.Helper()
	records := []models.VectorRecord{
		record("ISL", "Iceland", true, []float32{1, 0, 0}),
		record("FRA", "France", false, []float32{0, 1, 0}),
		record("JPN", "Japan", false, []float32{0.8, 0.6, 0}),
	}
	if err := s.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
}

func TestQueryOrdering(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	matches, err := s.Query(context.Background(), []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Query() = %d matches, want 2", len(matches))
	}
	if matches[0].Metadata.ISO3 != "ISL" {
		t.Errorf("nearest = %s, want ISL", matches[0].Metadata.ISO3)
	}
	if matches[0].Score < 0.99 {
		t.Errorf("nearest score = %f, want ~1.0", matches[0].Score)
	}
	if matches[1].Metadata.ISO3 != "JPN" {
		t.Errorf("second = %s, want JPN", matches[1].Metadata.ISO3)
	}
	if matches[1].Score < 0.79 || matches[1].Score > 0.81 {
		t.Errorf("second score = %f, want ~0.8", matches[1].Score)
	}
	if matches[0].Metadata.Content == "" || matches[0].Metadata.CountryName != "Iceland" {
		t.Errorf("metadata round trip = %+v", matches[0].Metadata)
	}
}

func TestQueryWarningFilter(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	matches, err := s.Query(context.Background(), []float32{1, 0, 0}, 3, models.Filter{"warning": true})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Query(warning) = %d matches, want 1", len(matches))
	}
	if !matches[0].Metadata.Warning || matches[0].Metadata.ISO3 != "ISL" {
		t.Errorf("match = %+v, want Iceland with warning", matches[0].Metadata)
	}
}

func TestQueryTopKClamped(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	matches, err := s.Query(context.Background(), []float32{1, 0, 0}, 50, nil)
	if err != nil {
		t.Fatalf("Query(topK 50) error = %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("Query(topK 50) = %d matches, want all 3", len(matches))
	}
}

func TestQueryEmptyCollection(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.EnsureIndex(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	matches, err := s.Query(context.Background(), []float32{1, 0, 0}, 5, nil)
	if err != nil {
		t.Fatalf("Query(empty) error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Query(empty) = %d matches, want 0", len(matches))
	}
}

func TestEnsureIndexCreatedOnce(t *testing.T) {
	dir := t.TempDir()
	s, err := New(config.ChromemConfig{Path: dir, Collection: "advisories-test"})
	if err != nil {
		t.Fatal(err)
	}
	created, err := s.EnsureIndex(context.Background(), 3)
	if err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	if !created {
		t.Error("first EnsureIndex() created = false, want true")
	}
	created, err = s.EnsureIndex(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second EnsureIndex() created = true, want false")
	}
	seed(t, s)

	// A reopened store sees the persisted collection.
	reopened, err := New(config.ChromemConfig{Path: dir, Collection: "advisories-test"})
	if err != nil {
		t.Fatal(err)
	}
	created, err = reopened.EnsureIndex(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("EnsureIndex() after reopen created = true, want false")
	}
}

func TestUpsertOverwrites(t *testing.T) {
	s := newTestStore(t)
	first := record("ISL", "Iceland", true, []float32{1, 0, 0})
	if err := s.Upsert(context.Background(), []models.VectorRecord{first}); err != nil {
		t.Fatal(err)
	}
	moved := record("ISL", "Iceland", true, []float32{0, 1, 0})
	if err := s.Upsert(context.Background(), []models.VectorRecord{moved}); err != nil {
		t.Fatal(err)
	}

	matches, err := s.Query(context.Background(), []float32{0, 1, 0}, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("Query() = %d matches, want 1 after overwrite", len(matches))
	}
	if matches[0].Score < 0.99 {
		t.Errorf("score = %f, want ~1.0 against replaced vector", matches[0].Score)
	}
}
