package chunker

import (
	"errors"
	"strings"
	"testing"

	"advisory-rag/internal/models"
)

// runeCodec maps every rune to one token, so window positions in tests are
// exact character positions.
type runeCodec struct{}

func (runeCodec) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens
}

func (runeCodec) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, tok := range tokens {
		runes[i] = rune(tok)
	}
	return string(runes)
}

func TestNewGuards(t *testing.T) {
	tests := []struct {
		name      string
		maxTokens int
		overlap   int
		wantErr   bool
	}{
		{"zero window", 0, 0, true},
		{"negative overlap", 10, -1, true},
		{"overlap equals window", 10, 10, true},
		{"overlap above window", 10, 15, true},
		{"valid", 10, 3, false},
		{"zero overlap", 10, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(runeCodec{}, tt.maxTokens, tt.overlap)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%d, %d) error = %v, wantErr %v", tt.maxTokens, tt.overlap, err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *models.ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Errorf("New() error = %v, want ConfigurationError", err)
				}
			}
		})
	}
}

func TestSplitSingleWindow(t *testing.T) {
	s, err := New(runeCodec{}, 100, 10)
	if err != nil {
		t.Fatal(err)
	}

	chunks := s.Split("Iceland", "volcanic activity near Grindavik")
	if len(chunks) != 1 {
		t.Fatalf("Split() = %d chunks, want 1", len(chunks))
	}
	want := "Iceland: volcanic activity near Grindavik"
	if chunks[0].Text != want {
		t.Errorf("chunk text = %q, want %q", chunks[0].Text, want)
	}
	if chunks[0].TokenCount != len([]rune("volcanic activity near Grindavik")) {
		t.Errorf("TokenCount = %d, want window length without prefix", chunks[0].TokenCount)
	}
}

func TestSplitWindowPositions(t *testing.T) {
	s, err := New(runeCodec{}, 5, 1)
	if err != nil {
		t.Fatal(err)
	}

	// 12 tokens, window 5, overlap 1: starts at 0, 4, 8.
	text := "abcdefghijkl"
	chunks := s.Split("X", text)
	want := []string{"X: abcde", "X: efghi", "X: ijkl"}
	if len(chunks) != len(want) {
		t.Fatalf("Split() = %d chunks, want %d", len(chunks), len(want))
	}
	for i, chunk := range chunks {
		if chunk.Text != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, chunk.Text, want[i])
		}
	}
	if chunks[2].TokenCount != 4 {
		t.Errorf("tail TokenCount = %d, want 4", chunks[2].TokenCount)
	}
}

func TestSplitChunkCount(t *testing.T) {
	tests := []struct {
		name      string
		length    int
		maxTokens int
		overlap   int
		want      int
	}{
		{"shorter than window", 100, 5000, 1000, 1},
		{"exactly one window", 5000, 5000, 1000, 1},
		{"advisory sized", 12000, 5000, 1000, 3},
		{"one past the window", 5001, 5000, 1000, 2},
		{"no overlap", 10000, 5000, 0, 2},
		{"single token", 1, 5000, 1000, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(runeCodec{}, tt.maxTokens, tt.overlap)
			if err != nil {
				t.Fatal(err)
			}
			chunks := s.Split("C", strings.Repeat("a", tt.length))
			if len(chunks) != tt.want {
				t.Fatalf("Split(%d tokens) = %d chunks, want %d", tt.length, len(chunks), tt.want)
			}
			// ceil((L-O)/(W-O)) for inputs longer than one window.
			if tt.length > tt.maxTokens {
				step := tt.maxTokens - tt.overlap
				formula := (tt.length - tt.overlap + step - 1) / step
				if len(chunks) != formula {
					t.Errorf("chunk count %d disagrees with formula %d", len(chunks), formula)
				}
			}
		})
	}
}

func TestSplitEveryWindowPrefixed(t *testing.T) {
	s, err := New(runeCodec{}, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	chunks := s.Split("Chile", strings.Repeat("x", 20))
	if len(chunks) < 2 {
		t.Fatalf("Split() = %d chunks, want several", len(chunks))
	}
	for i, chunk := range chunks {
		if !strings.HasPrefix(chunk.Text, "Chile: ") {
			t.Errorf("chunk[%d] = %q, missing country prefix", i, chunk.Text)
		}
	}
}

func TestSplitEmptyText(t *testing.T) {
	s, err := New(runeCodec{}, 5, 1)
	if err != nil {
		t.Fatal(err)
	}
	if chunks := s.Split("X", ""); len(chunks) != 0 {
		t.Errorf("Split(empty) = %d chunks, want 0", len(chunks))
	}
}
