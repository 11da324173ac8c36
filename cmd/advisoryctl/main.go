package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"advisory-rag/internal/answer"
	"advisory-rag/internal/chunker"
	"advisory-rag/internal/config"
	"advisory-rag/internal/dataset"
	"advisory-rag/internal/embedding"
	"advisory-rag/internal/helper"
	"advisory-rag/internal/importer"
	"advisory-rag/internal/ingest"
	"advisory-rag/internal/ledger"
	"advisory-rag/internal/models"
	"advisory-rag/internal/query"
	"advisory-rag/internal/vectorstore"
)

const configFilePath = "./configs/config.yaml"

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the YAML config file")
	ingestFlag := flag.Bool("ingest", false, "Chunk, embed and upsert the whole dataset")
	queryText := flag.String("query", "", "Search the index for advisory chunks")
	relevantText := flag.String("relevant", "", "Search and keep only results at or above -min-relevance")
	uniqueText := flag.String("unique", "", "Search for distinct countries, widening until -top-k are found")
	contentISO3 := flag.String("content", "", "Print the full advisory for an ISO3 code")
	askText := flag.String("ask", "", "Answer a question over retrieved advisories")
	importDir := flag.String("import", "", "Build the dataset file from advisory documents in a directory")
	outPath := flag.String("out", "", "Where -import writes the dataset (defaults to the configured dataset path)")
	statusFlag := flag.Bool("status", false, "Print the last ingestion run and its failed chunks")
	topK := flag.Int("top-k", 5, "Number of results to return")
	minRelevance := flag.Float64("min-relevance", 40, "Relevance floor in percent for -relevant and -unique")
	countryName := flag.String("country", "", "Filter -query by country name")
	iso3 := flag.String("iso3", "", "Filter -query by ISO3 code")
	warning := flag.Bool("warning", false, "Filter -query by warning flag")
	flag.Parse()

	// -warning false is a real filter, so only pass it through when the flag
	// was given on the command line.
	warningSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "warning" {
			warningSet = true
		}
	})

	ops := 0
	for _, set := range []bool{
		*ingestFlag,
		*queryText != "",
		*relevantText != "",
		*uniqueText != "",
		*contentISO3 != "",
		*askText != "",
		*importDir != "",
		*statusFlag,
	} {
		if set {
			ops++
		}
	}
	if ops != 1 {
		fmt.Fprintln(os.Stderr, "advisoryctl needs exactly one of -ingest, -query, -relevant, -unique, -content, -ask, -import or -status")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing log level")
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	ctx := context.Background()
	switch {
	case *ingestFlag:
		runIngest(ctx, cfg)
	case *queryText != "":
		filter := models.Filter{}
		if *countryName != "" {
			filter["countryName"] = *countryName
		}
		if *iso3 != "" {
			filter["iso3Code"] = strings.ToUpper(*iso3)
		}
		if warningSet {
			filter["warning"] = *warning
		}
		printResponse(newQueryService(cfg).Search(ctx, *queryText, *topK, filter))
	case *relevantText != "":
		printResponse(newQueryService(cfg).SearchRelevant(ctx, *minRelevance, *topK, *relevantText))
	case *uniqueText != "":
		printResponse(newQueryService(cfg).SearchUniqueCountries(ctx, *minRelevance, *topK, *uniqueText))
	case *contentISO3 != "":
		runContent(cfg, *contentISO3)
	case *askText != "":
		runAsk(ctx, cfg, *askText)
	case *importDir != "":
		runImport(cfg, *importDir, *outPath)
	case *statusFlag:
		runStatus(ctx, cfg)
	}
}

func runIngest(ctx context.Context, cfg *config.Config) {
	data, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading dataset")
	}
	codec, err := chunker.NewTiktokenCodec(cfg.Chunker.Encoding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading token encoding")
	}
	splitter, err := chunker.New(codec, cfg.Chunker.MaxTokens, cfg.Chunker.OverlapTokens)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building chunker")
	}
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	store, err := vectorstore.New(cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing vector store")
	}

	var led *ledger.Ledger
	if cfg.Ingest.LedgerPath != "" {
		led, err = ledger.Open(ctx, cfg.Ingest.LedgerPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Error opening ingest ledger")
		}
		defer led.Close()
	}

	pipeline := ingest.New(data, splitter, embedder, store, led, ingest.Options{
		IndexName: cfg.Store.IndexName(),
		Dimension: cfg.Embedding.Dimension,
		Workers:   cfg.Ingest.Workers,
	})
	summary, err := pipeline.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting dataset")
	}

	log.Info().
		Str("run_id", summary.RunID).
		Bool("index_created", summary.IndexCreated).
		Int("countries", summary.Countries).
		Int("chunks_upserted", summary.ChunksUpserted).
		Int("chunks_failed", summary.ChunksFailed).
		Dur("took", summary.Duration).
		Msg("Ingestion finished")
	if summary.ChunksFailed > 0 {
		os.Exit(1)
	}
}

func newQueryService(cfg *config.Config) *query.Service {
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
	return query.New(data, embedder, store, query.Options{MaxWidenRounds: cfg.Query.MaxWidenRounds})
}

// printResponse writes the envelope to stdout. The process reports failure
// through the exit code as well, so scripts need not parse the JSON.
func printResponse(resp models.QueryResponse) {
	helper.PrettyPrint(resp)
	if !resp.Success {
		os.Exit(1)
	}
}

func runContent(cfg *config.Config, iso3 string) {
	data, err := dataset.Load(cfg.Dataset.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading dataset")
	}
	// Unknown codes print null rather than failing.
	helper.PrettyPrint(data.FullContent(iso3))
}

func runAsk(ctx context.Context, cfg *config.Config, question string) {
	svc := newQueryService(cfg)
	answerer, err := answer.New(cfg.Answer, svc)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing answer service")
	}
	resp, err := answerer.Ask(ctx, question)
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering question")
	}

	log.Info().Msg("Question: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", question)

	log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, src := range resp.Sources {
		fmt.Printf("%s (%s) chunk %d/%d relevance %.2f\n",
			src.CountryName, src.ISO3, src.ChunkIndex+1, src.TotalChunks, src.Score)
	}
	fmt.Println()

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", resp.Answer)
}

func runImport(cfg *config.Config, dir, out string) {
	if out == "" {
		out = cfg.Dataset.Path
	}
	entries, err := importer.ImportDir(dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Error importing documents")
	}
	if err := importer.WriteDataset(out, entries); err != nil {
		log.Fatal().Err(err).Msg("Error writing dataset")
	}
}

func runStatus(ctx context.Context, cfg *config.Config) {
	if cfg.Ingest.LedgerPath == "" {
		log.Fatal().Msg("No ingest ledger configured")
	}
	led, err := ledger.Open(ctx, cfg.Ingest.LedgerPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening ingest ledger")
	}
	defer led.Close()

	run, err := led.LastRun(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading ledger")
	}
	if run == nil {
		fmt.Println("no ingestion runs recorded")
		return
	}
	helper.PrettyPrint(run)

	failed, err := led.FailedChunks(ctx, run.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading failed chunks")
	}
	if len(failed) > 0 {
		log.Warn().Int("failed", len(failed)).Msg("Last run left failed chunks behind")
		helper.PrettyPrint(failed)
	}
}
