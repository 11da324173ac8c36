package models

// QueryResult is one scored match with its stored metadata.
type QueryResult struct {
	ID          string  `json:"id"`
	Score       float64 `json:"score"`
	CountryName string  `json:"countryName"`
	ISO3        string  `json:"iso3Code"`
	Warning     bool    `json:"warning"`
	Content     string  `json:"content"`
	ChunkIndex  int     `json:"chunkIndex"`
	TotalChunks int     `json:"totalChunks"`
}

// QueryResponse is the envelope every query operation returns. Failures are
// reported in-band: Success false and Error set, never a panic upward.
type QueryResponse struct {
	Success      bool          `json:"success"`
	Results      []QueryResult `json:"results"`
	TotalResults int           `json:"totalResults"`
	Message      string        `json:"message,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Succeeded wraps results in a success envelope.
func Succeeded(results []QueryResult, message string) QueryResponse {
	if results == nil {
		results = []QueryResult{}
	}
	return QueryResponse{
		Success:      true,
		Results:      results,
		TotalResults: len(results),
		Message:      message,
	}
}

// Failed wraps an error in a failure envelope with no results.
func Failed(err error) QueryResponse {
	return QueryResponse{
		Success: false,
		Results: []QueryResult{},
		Error:   err.Error(),
	}
}
