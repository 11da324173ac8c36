package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"advisory-rag/internal/config"
	"advisory-rag/internal/dataset"
	"advisory-rag/internal/embedding"
	"advisory-rag/internal/query"
	"advisory-rag/internal/tui"
	"advisory-rag/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", "./configs/config.yaml", "Path to the YAML config file")
	topK := flag.Int("top-k", 10, "Number of results per search")
	minRelevance := flag.Float64("min-relevance", 0, "Relevance floor in percent, 0 keeps everything")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	data, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading dataset")
	}
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	store, err := vectorstore.New(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing vector store")
	}
	svc := query.New(data, embedder, store, query.Options{MaxWidenRounds: cfg.Query.MaxWidenRounds})

	summary := fmt.Sprintf("%d countries indexed, %d with active travel warnings",
		data.Len(), data.Warnings())
	m := tui.New(svc, summary, tui.Options{TopK: *topK, MinRelevance: *minRelevance})

	// The TUI owns the terminal from here on.
	log.Logger = zerolog.New(io.Discard)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tui error:", err)
		os.Exit(1)
	}
}
