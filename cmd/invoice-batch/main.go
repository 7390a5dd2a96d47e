package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/resolve"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory of invoice PDFs to process (required)")
		cfgPath = flag.String("config", "config.yaml", "optional YAML config file")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}
	os.Exit(run(*dir, *cfgPath, logger))
}

// run returns the process exit code so deferred cleanup runs before os.Exit.
func run(dir, cfgPath string, logger *slog.Logger) int {
	cfg, err := common.LoadConfig(cfgPath)
	if err != nil {
		printError("Error: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		return 2
	}

	uploads, err := readDir(dir)
	if err != nil {
		printError("Error: %v\n", err)
		return 1
	}
	if len(uploads) == 0 {
		printError("Error: no .pdf files in %s\n", dir)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	layout := storage.NewLayout(cfg.Storage.JSONDir, cfg.Storage.TableDir)
	if err := layout.EnsureDirs(); err != nil {
		logger.Error("failed to create output directories", "error", err)
		return 1
	}
	textExtractor, err := extract.New(cfg.PDF, logger)
	if err != nil {
		logger.Error("failed to configure pdf extractor", "error", err)
		return 1
	}
	generator, err := resolve.New(cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to configure llm provider", "error", err)
		return 1
	}
	schema, err := llm.InvoiceSchema(logger)
	if err != nil {
		logger.Error("failed to build invoice schema", "error", err)
		return 1
	}

	var recorder pipeline.JobRecorder
	if cfg.Ledger.Enabled() {
		db, err := repo.Open(ctx, cfg.Ledger, logger)
		if err != nil {
			logger.Error("failed to open ledger", "error", err)
			return 1
		}
		defer db.Close()
		recorder = repo.NewExtractJobRepository(db, logger)
	}

	processor := pipeline.NewProcessor(layout, pipeline.New(textExtractor, generator, schema, logger), recorder, logger)
	res, err := processor.RunBatch(ctx, uploads)
	if err != nil {
		logger.Error("batch failed", "error", err)
		return 1
	}

	for _, o := range res.Outcomes {
		if o.Status == pipeline.StatusDone {
			fmt.Printf("done    %s\n", o.File)
			continue
		}
		fmt.Printf("failed  %s (%s): %s\n", o.File, o.Kind, o.Error)
	}
	if len(res.Rows) == 0 {
		fmt.Println("No valid invoice data extracted.")
		return 1
	}
	fmt.Printf("%d/%d extracted, table: %s\n", len(res.Rows), len(res.Outcomes), res.TablePath)
	return 0
}

// readDir loads every PDF directly under dir, sorted by name.
func readDir(dir string) ([]pipeline.Upload, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var uploads []pipeline.Upload
	for _, entry := range entries {
		if entry.IsDir() || !constants.AllowedExt(filepath.Ext(entry.Name())) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		uploads = append(uploads, pipeline.Upload{Name: entry.Name(), Data: data})
	}
	return uploads, nil
}
