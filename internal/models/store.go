package models

// Filter restricts query matches to vectors whose metadata equals every
// entry. Filterable keys are countryName, iso3Code and warning.
type Filter map[string]any

// Match is one scored nearest neighbor returned by a vector store.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Result flattens a match into the envelope result shape.
func (m Match) Result() QueryResult {
	return QueryResult{
		ID:          m.ID,
		Score:       m.Score,
		CountryName: m.Metadata.CountryName,
		ISO3:        m.Metadata.ISO3,
		Warning:     m.Metadata.Warning,
		Content:     m.Metadata.Content,
		ChunkIndex:  m.Metadata.ChunkIndex,
		TotalChunks: m.Metadata.TotalChunks,
	}
}
