// Package tui is an interactive terminal front end for advisory search.
// It wraps the query service in a Bubble Tea model: type a question, get
// scored advisory chunks, cycle through them with the arrow keys.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"advisory-rag/internal/models"
)

// Searcher is the TUI-facing subset of the query service.
type Searcher interface {
	SearchRelevant(ctx context.Context, minRelevance float64, topK int, text string) models.QueryResponse
}

// Options tune how each search is issued.
type Options struct {
	TopK         int
	MinRelevance float64
}

// Model is the Bubble Tea model for the advisory search screen.
type Model struct {
	service   Searcher
	opts      Options
	input     textinput.Model
	viewport  viewport.Model
	results   []models.QueryResult
	summary   string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New builds the model. summary is a one-line dataset description shown
// under the header, e.g. the country and warning counts.
func New(service Searcher, summary string, opts Options) Model {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about a destination and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		opts:     opts,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Ready. Type to search advisories.",
	}
}

// Init starts the text input cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				resp := m.service.SearchRelevant(context.Background(), m.opts.MinRelevance, m.opts.TopK, q)
				if !resp.Success {
					m.status = "Error: " + resp.Error
					m.results = nil
				} else {
					m.status = fmt.Sprintf("%d advisories for %q", resp.TotalResults, q)
					if resp.Message != "" {
						m.status += " (" + resp.Message + ")"
					}
					m.results = resp.Results
					m.cursor = 0
					m.lastQuery = q
				}
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the layout: header, dataset summary, the current result,
// the query box and a status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Travel Advisory Search")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet. Up/Down cycles matches once you have some."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  relevance %.1f%%", m.cursor+1, len(m.results), r.Score*100)
	country := fmt.Sprintf("%s (%s)  chunk %d/%d", r.CountryName, r.ISO3, r.ChunkIndex+1, r.TotalChunks)
	if r.Warning {
		country += "  " + warningStyle.Render("TRAVEL WARNING")
	}
	body := highlightBestSentence(r.Content, m.lastQuery)
	return title + "\n" + country + "\n\n" + body
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence marks the advisory sentence sharing the most words
// with the query, so the reader's eye lands on why the chunk matched.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
