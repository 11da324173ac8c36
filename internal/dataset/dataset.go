package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"advisory-rag/internal/models"
)

// The dataset file is an object keyed by ISO3 code. Keys and entry shapes
// are validated before decoding so a malformed file fails loudly at startup
// instead of surfacing as missing metadata later.
const schemaJSON = `{
	"type": "object",
	"patternProperties": {
		"^[A-Z]{3}$": {
			"type": "object",
			"required": ["countryName", "content"],
			"properties": {
				"countryName": {"type": "string", "minLength": 1},
				"content": {"type": "string", "minLength": 1},
				"warning": {"type": "boolean"}
			},
			"additionalProperties": false
		}
	},
	"additionalProperties": false
}`

type entry struct {
	CountryName string `json:"countryName"`
	Content     string `json:"content"`
	Warning     bool   `json:"warning"`
}

// Store holds the advisory dataset in memory. It is loaded once at process
// start and read-only afterwards, so lookups need no locking.
type Store struct {
	records map[string]models.CountryRecord
	ordered []models.CountryRecord
}

// Load reads, validates and indexes the dataset file.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return Parse(data)
}

// Parse builds a Store from raw dataset bytes.
func Parse(data []byte) (*Store, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	var raw map[string]entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	s := &Store{records: make(map[string]models.CountryRecord, len(raw))}
	for iso3, e := range raw {
		s.records[iso3] = models.CountryRecord{
			ISO3:        iso3,
			CountryName: e.CountryName,
			Content:     e.Content,
			Warning:     e.Warning,
		}
	}
	s.ordered = make([]models.CountryRecord, 0, len(s.records))
	for _, rec := range s.records {
		s.ordered = append(s.ordered, rec)
	}
	sort.Slice(s.ordered, func(i, j int) bool { return s.ordered[i].ISO3 < s.ordered[j].ISO3 })
	log.Debug().Int("countries", len(s.records)).Msg("dataset loaded")
	return s, nil
}

func validate(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("validate dataset: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return &models.ConfigurationError{Reason: "dataset schema: " + strings.Join(msgs, "; ")}
	}
	return nil
}

// FullContent returns the full advisory record for an ISO3 code, or nil
// when the dataset has no such country. Absence is not an error.
func (s *Store) FullContent(iso3 string) *models.CountryRecord {
	rec, ok := s.records[strings.ToUpper(iso3)]
	if !ok {
		return nil
	}
	return &rec
}

// All returns every record ordered by ISO3 code, so ingestion passes are
// deterministic run to run.
func (s *Store) All() []models.CountryRecord { return s.ordered }

// Len reports the number of countries in the dataset.
func (s *Store) Len() int { return len(s.records) }

// Warnings reports how many countries carry an active warning.
func (s *Store) Warnings() int {
	n := 0
	for _, rec := range s.records {
		if rec.Warning {
			n++
		}
	}
	return n
}
