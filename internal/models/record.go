package models

import "fmt"

// CountryRecord is one country's advisory as loaded from the dataset file.
// ISO3 is the dataset key and unique across records.
type CountryRecord struct {
	ISO3        string `json:"iso3Code"`
	CountryName string `json:"countryName"`
	Content     string `json:"content"`
	Warning     bool   `json:"warning"`
}

// Chunk is a token-bounded window of advisory text.
type Chunk struct {
	Text       string
	TokenCount int
}

// Metadata travels with every stored vector and comes back on query matches.
type Metadata struct {
	CountryName string `json:"countryName"`
	ISO3        string `json:"iso3Code"`
	Warning     bool   `json:"warning"`
	Content     string `json:"content"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
}

// VectorRecord is one embedded chunk ready for upsert.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// VectorID builds the deterministic vector ID for a country chunk, so
// re-ingesting a country overwrites its vectors instead of duplicating them.
func VectorID(iso3 string, chunkIndex int) string {
	return fmt.Sprintf("%s_chunk_%d", iso3, chunkIndex)
}
