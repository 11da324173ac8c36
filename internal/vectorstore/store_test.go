package vectorstore

import (
	"errors"
	"testing"

	"advisory-rag/internal/config"
	"advisory-rag/internal/models"
)

func TestNewBackendSelection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StoreConfig
		wantErr bool
	}{
		{
			"pinecone",
			config.StoreConfig{Backend: "pinecone", Pinecone: &config.PineconeConfig{Index: "x"}},
			false,
		},
		{
			"pinecone unconfigured",
			config.StoreConfig{Backend: "pinecone"},
			true,
		},
		{
			"pgvector",
			config.StoreConfig{Backend: "pgvector", Pgvector: &config.PgvectorConfig{DSN: "postgres://localhost/advisories"}},
			false,
		},
		{
			"pgvector without dsn",
			config.StoreConfig{Backend: "pgvector", Pgvector: &config.PgvectorConfig{}},
			true,
		},
		{
			"chromem without path",
			config.StoreConfig{Backend: "chromem", Chromem: &config.ChromemConfig{}},
			true,
		},
		{
			"unknown backend",
			config.StoreConfig{Backend: "faiss"},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var cfgErr *models.ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Errorf("New() error = %v, want ConfigurationError", err)
				}
				return
			}
			if store == nil {
				t.Error("New() store = nil, want backend")
			}
		})
	}
}

func TestNewChromem(t *testing.T) {
	store, err := New(config.StoreConfig{
		Backend: "chromem",
		Chromem: &config.ChromemConfig{Path: t.TempDir()},
	})
	if err != nil {
		t.Fatalf("New(chromem) error = %v", err)
	}
	if store == nil {
		t.Fatal("New(chromem) store = nil")
	}
}
