// Package query answers similarity searches over the advisory index. Every
// operation embeds the search text, asks the vector store for neighbors and
// post-processes the matches; failures come back inside the response
// envelope, never as a fault.
package query

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"advisory-rag/internal/dataset"
	"advisory-rag/internal/models"
)

const defaultTopK = 5

// Embedder is the slice of the embedding client the service needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the read side of the vector index.
type Store interface {
	Query(ctx context.Context, vector []float32, topK int, filter models.Filter) ([]models.Match, error)
}

// Options tune one service instance.
type Options struct {
	// MaxWidenRounds caps how often SearchUniqueCountries may widen its
	// top-K before settling for what it found. Without the cap the search
	// would loop forever on an index holding fewer distinct countries than
	// requested.
	MaxWidenRounds int
}

// Service runs stateless queries against the index. It holds no per-call
// state, so one instance serves all invocations.
type Service struct {
	data           *dataset.Store
	embedder       Embedder
	store          Store
	maxWidenRounds int
}

func New(data *dataset.Store, embedder Embedder, store Store, opts Options) *Service {
	if opts.MaxWidenRounds <= 0 {
		opts.MaxWidenRounds = 5
	}
	return &Service{
		data:           data,
		embedder:       embedder,
		store:          store,
		maxWidenRounds: opts.MaxWidenRounds,
	}
}

var filterableFields = map[string]bool{
	"countryName": true,
	"iso3Code":    true,
	"warning":     true,
}

// Search embeds text and returns the topK nearest chunks. A non-empty filter
// is pushed down to the store as metadata equality conditions.
func (s *Service) Search(ctx context.Context, text string, topK int, filter models.Filter) models.QueryResponse {
	for field := range filter {
		if !filterableFields[field] {
			return fail("search", &models.ConfigurationError{
				Reason: fmt.Sprintf("unsupported filter field %q", field),
			})
		}
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fail("search", err)
	}
	matches, err := s.store.Query(ctx, vector, topK, filter)
	if err != nil {
		return fail("search", err)
	}
	results := make([]models.QueryResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, m.Result())
	}
	return models.Succeeded(results, "")
}

// SearchRelevant embeds text, retrieves the topK nearest chunks and drops
// every match scoring below minRelevance/100. Nothing is filtered at the
// store; the threshold is applied to the returned scores.
func (s *Service) SearchRelevant(ctx context.Context, minRelevance float64, topK int, text string) models.QueryResponse {
	if topK <= 0 {
		topK = defaultTopK
	}
	threshold := minRelevance / 100
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fail("search relevant", err)
	}
	matches, err := s.store.Query(ctx, vector, topK, nil)
	if err != nil {
		return fail("search relevant", err)
	}
	results := make([]models.QueryResult, 0, len(matches))
	for _, m := range matches {
		if m.Score < threshold {
			continue
		}
		results = append(results, m.Result())
	}
	message := ""
	if dropped := len(matches) - len(results); dropped > 0 {
		message = fmt.Sprintf("dropped %d matches below relevance %.0f%%", dropped, minRelevance)
	}
	return models.Succeeded(results, message)
}

// SearchUniqueCountries embeds text once and widens the search until topK
// distinct countries score at or above minRelevance/100. Each country comes
// back once, carrying its full advisory from the dataset rather than the
// matched chunk window. The widening stops when the index runs out of
// matches or after MaxWidenRounds, returning whatever was found by then.
func (s *Service) SearchUniqueCountries(ctx context.Context, minRelevance float64, topK int, text string) models.QueryResponse {
	if topK <= 0 {
		topK = defaultTopK
	}
	threshold := minRelevance / 100
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fail("search unique countries", err)
	}

	currentK := topK
	var countries []models.QueryResult
	for round := 0; ; round++ {
		matches, err := s.store.Query(ctx, vector, currentK, nil)
		if err != nil {
			return fail("search unique countries", err)
		}
		countries = s.uniqueCountries(matches, threshold, topK)
		if len(countries) >= topK {
			return models.Succeeded(countries, "")
		}
		if len(matches) < currentK {
			// The store returned fewer matches than asked for (or none at
			// all): the index is exhausted and widening cannot find more.
			break
		}
		if round+1 >= s.maxWidenRounds {
			log.Warn().
				Int("rounds", s.maxWidenRounds).
				Int("distinct", len(countries)).
				Int("requested", topK).
				Msg("unique-country search hit the widening cap")
			break
		}
		currentK *= 2
		log.Debug().Int("round", round+1).Int("top_k", currentK).Int("distinct", len(countries)).Msg("widening unique-country search")
	}
	message := fmt.Sprintf("found %d of %d requested distinct countries", len(countries), topK)
	return models.Succeeded(countries, message)
}

// uniqueCountries keeps the best-scoring match per ISO3 code at or above
// threshold, in score order, at most limit entries. Matches for countries
// the dataset knows get their chunk text swapped for the full advisory.
func (s *Service) uniqueCountries(matches []models.Match, threshold float64, limit int) []models.QueryResult {
	seen := make(map[string]bool, limit)
	var out []models.QueryResult
	for _, m := range matches {
		if m.Score < threshold {
			continue
		}
		iso3 := m.Metadata.ISO3
		if iso3 == "" || seen[iso3] {
			continue
		}
		seen[iso3] = true
		result := m.Result()
		if rec := s.data.FullContent(iso3); rec != nil {
			result.CountryName = rec.CountryName
			result.Warning = rec.Warning
			result.Content = rec.Content
		}
		out = append(out, result)
		if len(out) == limit {
			break
		}
	}
	return out
}

func fail(op string, err error) models.QueryResponse {
	log.Error().Err(err).Str("op", op).Msg("query failed")
	return models.Failed(err)
}
