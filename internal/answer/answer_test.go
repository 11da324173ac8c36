package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"advisory-rag/internal/config"
	"advisory-rag/internal/models"
)

type fakeRetriever struct {
	resp         models.QueryResponse
	minRelevance float64
	topK         int
	text         string
}

func (f *fakeRetriever) SearchRelevant(ctx context.Context, minRelevance float64, topK int, text string) models.QueryResponse {
	f.minRelevance = minRelevance
	f.topK = topK
	f.text = text
	return f.resp
}

type fakeModel struct {
	answer   string
	err      error
	messages []llms.MessageContent
	calls    int
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return f.answer, f.err
}

func result(iso3, content string, score float64) models.QueryResult {
	return models.QueryResult{
		ID:          models.VectorID(iso3, 0),
		Score:       score,
		ISO3:        iso3,
		CountryName: iso3,
		Content:     content,
	}
}

func messageText(t *testing.T, msg llms.MessageContent) string {
	t.Helper()
	if len(msg.Parts) != 1 {
		t.Fatalf("message has %d parts, want 1", len(msg.Parts))
	}
	text, ok := msg.Parts[0].(llms.TextContent)
	if !ok {
		t.Fatalf("message part is %T, want TextContent", msg.Parts[0])
	}
	return text.Text
}

func TestAsk(t *testing.T) {
	retriever := &fakeRetriever{resp: models.Succeeded([]models.QueryResult{
		result("ISL", "Iceland: volcanic activity near Grindavik", 0.91),
		result("CHL", "Chile: seismic activity is common", 0.82),
	}, "")}
	model := &fakeModel{answer: "Iceland carries an eruption warning."}
	svc := NewWithModel(config.AnswerConfig{TopK: 2, MinRelevance: 40}, retriever, model)

	resp, err := svc.Ask(context.Background(), "Where is volcanic risk highest?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.Answer != "Iceland carries an eruption warning." {
		t.Errorf("Answer = %q, want the model's text", resp.Answer)
	}
	if len(resp.Sources) != 2 || resp.Sources[0].ISO3 != "ISL" {
		t.Errorf("Sources = %+v, want the retrieved chunks passed through", resp.Sources)
	}
	if retriever.minRelevance != 40 || retriever.topK != 2 {
		t.Errorf("retrieval used minRelevance=%v topK=%d, want config values", retriever.minRelevance, retriever.topK)
	}

	if len(model.messages) != 2 {
		t.Fatalf("model got %d messages, want system + user", len(model.messages))
	}
	if model.messages[0].Role != llms.ChatMessageTypeSystem {
		t.Errorf("first message role = %v, want system", model.messages[0].Role)
	}
	prompt := messageText(t, model.messages[1])
	for _, fragment := range []string{
		"Iceland: volcanic activity near Grindavik",
		"Chile: seismic activity is common",
		models.ContextSeparator,
		"Where is volcanic risk highest?",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("prompt missing %q", fragment)
		}
	}
}

func TestAskNoMatches(t *testing.T) {
	retriever := &fakeRetriever{resp: models.Succeeded(nil, "")}
	model := &fakeModel{answer: "should never be asked"}
	svc := NewWithModel(config.AnswerConfig{}, retriever, model)

	resp, err := svc.Ask(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if model.calls != 0 {
		t.Error("model was called despite zero retrieved advisories")
	}
	if resp.Answer == "" || len(resp.Sources) != 0 {
		t.Errorf("Ask() = %+v, want explanatory answer with no sources", resp)
	}
}

func TestAskRetrievalFailure(t *testing.T) {
	retriever := &fakeRetriever{resp: models.Failed(errors.New("index unavailable"))}
	svc := NewWithModel(config.AnswerConfig{}, retriever, &fakeModel{})

	_, err := svc.Ask(context.Background(), "anything")
	if err == nil {
		t.Fatal("Ask() error = nil, want retrieval failure")
	}
	var provErr *models.ProviderError
	if !errors.As(err, &provErr) {
		t.Errorf("Ask() error = %v, want ProviderError", err)
	}
}

func TestAskModelFailure(t *testing.T) {
	retriever := &fakeRetriever{resp: models.Succeeded([]models.QueryResult{
		result("ISL", "Iceland: volcanic activity", 0.91),
	}, "")}
	model := &fakeModel{err: errors.New("rate limited")}
	svc := NewWithModel(config.AnswerConfig{}, retriever, model)

	_, err := svc.Ask(context.Background(), "anything")
	if err == nil {
		t.Fatal("Ask() error = nil, want completion failure")
	}
	var provErr *models.ProviderError
	if !errors.As(err, &provErr) {
		t.Errorf("Ask() error = %v, want ProviderError", err)
	}
}
