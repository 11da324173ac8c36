package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"advisory-rag/internal/models"
)

const sampleDataset = `{
	"FRA": {"countryName": "France", "content": "Exercise normal precautions in France.", "warning": false},
	"AFG": {"countryName": "Afghanistan", "content": "Do not travel to Afghanistan.", "warning": true},
	"JPN": {"countryName": "Japan", "content": "Exercise normal precautions in Japan."}
}`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sampleDataset))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
	if s.Warnings() != 1 {
		t.Errorf("Warnings() = %d, want 1", s.Warnings())
	}

	all := s.All()
	wantOrder := []string{"AFG", "FRA", "JPN"}
	for i, iso3 := range wantOrder {
		if all[i].ISO3 != iso3 {
			t.Errorf("All()[%d].ISO3 = %s, want %s", i, all[i].ISO3, iso3)
		}
	}
}

func TestFullContent(t *testing.T) {
	s, err := Parse([]byte(sampleDataset))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	rec := s.FullContent("AFG")
	if rec == nil {
		t.Fatal("FullContent(AFG) = nil, want record")
	}
	if rec.CountryName != "Afghanistan" || !rec.Warning {
		t.Errorf("FullContent(AFG) = %+v, want Afghanistan with warning", rec)
	}

	if got := s.FullContent("fra"); got == nil {
		t.Error("FullContent(fra) = nil, want case-insensitive match")
	}

	if got := s.FullContent("ZZZ"); got != nil {
		t.Errorf("FullContent(ZZZ) = %+v, want nil", got)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"lowercase key", `{"fra": {"countryName": "France", "content": "x"}}`},
		{"missing country name", `{"FRA": {"content": "x"}}`},
		{"empty content", `{"FRA": {"countryName": "France", "content": ""}}`},
		{"warning not bool", `{"FRA": {"countryName": "France", "content": "x", "warning": "yes"}}`},
		{"unknown field", `{"FRA": {"countryName": "France", "content": "x", "level": 3}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Parse() error = nil, want schema error")
			}
			var cfgErr *models.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Parse() error = %v, want ConfigurationError", err)
			}
		})
	}
}

func TestParseEmptyDataset(t *testing.T) {
	s, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if got := s.All(); len(got) != 0 {
		t.Errorf("All() = %v, want empty", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countries.json")
	if err := os.WriteFile(path, []byte(sampleDataset), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Load(missing) error = nil, want error")
	}
}
