package chunker

import (
	"fmt"

	"advisory-rag/internal/models"
)

// Splitter cuts advisory text into overlapping token windows. Successive
// windows hold at most maxTokens tokens and start (maxTokens - overlap)
// tokens apart, so consecutive chunks share overlap tokens of context.
type Splitter struct {
	codec     Codec
	maxTokens int
	overlap   int
}

func New(codec Codec, maxTokens, overlap int) (*Splitter, error) {
	if codec == nil {
		return nil, &models.ConfigurationError{Reason: "chunker requires a token codec"}
	}
	if maxTokens <= 0 {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("max tokens must be positive, got %d", maxTokens)}
	}
	if overlap < 0 {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("overlap must be non-negative, got %d", overlap)}
	}
	if overlap >= maxTokens {
		// The window start advances by (maxTokens - overlap); a non-positive
		// step would loop forever.
		return nil, &models.ConfigurationError{
			Reason: fmt.Sprintf("overlap %d must be smaller than max tokens %d", overlap, maxTokens),
		}
	}
	return &Splitter{codec: codec, maxTokens: maxTokens, overlap: overlap}, nil
}

// Split tokenizes text and returns its windows in order. Each window is
// decoded back to text and prefixed with the country name so the chunk
// stays attributable on its own. TokenCount is the window's token count,
// excluding the prefix. Empty text yields no chunks.
func (s *Splitter) Split(countryName, text string) []models.Chunk {
	tokens := s.codec.Encode(text)
	if len(tokens) == 0 {
		return nil
	}
	step := s.maxTokens - s.overlap
	var chunks []models.Chunk
	for start := 0; start < len(tokens); start += step {
		end := start + s.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		chunks = append(chunks, models.Chunk{
			Text:       countryName + ": " + s.codec.Decode(window),
			TokenCount: len(window),
		})
		// The final window reaches the end of the token sequence; a further
		// window would only repeat tail tokens already covered.
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
