// Package answer turns retrieved advisory chunks into a grounded response
// from a completion model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"advisory-rag/internal/config"
	"advisory-rag/internal/models"
)

const systemPrompt = "You are a travel advisory assistant. Answer strictly from the advisory excerpts provided."

// Retriever is the slice of the query service the answerer needs.
type Retriever interface {
	SearchRelevant(ctx context.Context, minRelevance float64, topK int, text string) models.QueryResponse
}

// Response carries the model's answer and the chunks it was grounded in.
type Response struct {
	Answer  string               `json:"answer"`
	Sources []models.QueryResult `json:"sources"`
}

type Service struct {
	llm          llms.Model
	retriever    Retriever
	topK         int
	minRelevance float64
}

// New builds the completion client once and reuses it for every question.
// The API key is read from the environment variable named in the config.
func New(cfg config.AnswerConfig, retriever Retriever) (*Service, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey(), "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init completion LLM: %w", err)
	}
	return NewWithModel(cfg, retriever, llm), nil
}

// NewWithModel wires an existing model; tests substitute a fake here.
func NewWithModel(cfg config.AnswerConfig, retriever Retriever, llm llms.Model) *Service {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	return &Service{
		llm:          llm,
		retriever:    retriever,
		topK:         topK,
		minRelevance: cfg.MinRelevance,
	}
}

// Ask retrieves the advisories most relevant to the question and has the
// completion model answer from them alone.
func (s *Service) Ask(ctx context.Context, question string) (*Response, error) {
	retrieved := s.retriever.SearchRelevant(ctx, s.minRelevance, s.topK, question)
	if !retrieved.Success {
		return nil, &models.ProviderError{Provider: "query", Op: "retrieve advisories", Err: errors.New(retrieved.Error)}
	}
	if len(retrieved.Results) == 0 {
		// Nothing cleared the relevance bar; asking the model would only
		// invite a guess.
		return &Response{
			Answer:  "No advisories matched the question. Try a lower relevance threshold.",
			Sources: []models.QueryResult{},
		}, nil
	}

	var advisories strings.Builder
	for i, result := range retrieved.Results {
		if i > 0 {
			advisories.WriteString(models.ContextSeparator)
		}
		advisories.WriteString(result.Content)
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(models.AnswerPromptTemplate, advisories.String(), question)),
	}

	completion, err := s.llm.GenerateContent(ctx, messages)
	if err != nil {
		return nil, &models.ProviderError{Provider: "completion", Op: "generate", Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, &models.ProviderError{Provider: "completion", Op: "generate", Err: errors.New("no choices returned")}
	}
	log.Debug().Int("sources", len(retrieved.Results)).Msg("answer generated")
	return &Response{Answer: completion.Choices[0].Content, Sources: retrieved.Results}, nil
}
