package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/resolve"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/server"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

func main() {
	// Setup structured logger that outputs messages with variables but no time/level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "error", err)
	}

	os.Exit(run(logger))
}

// run returns the process exit code so deferred cleanup runs before os.Exit.
func run(logger *slog.Logger) int {
	cfg, err := common.LoadConfig(getenv("APP_CONFIG", "config.yaml"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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
	pl := pipeline.New(textExtractor, generator, schema, logger)

	deps := server.Dependencies{
		Layout:      layout,
		MaxUploadMB: cfg.Server.MaxUploadMB,
		Logger:      logger,
	}

	// Optional run ledger
	var recorder pipeline.JobRecorder
	if cfg.Ledger.Enabled() {
		db, err := repo.Open(ctx, cfg.Ledger, logger)
		if err != nil {
			logger.Error("failed to open ledger", "error", err, "driver", cfg.Ledger.Driver)
			return 1
		}
		defer db.Close()
		jobs := repo.NewExtractJobRepository(db, logger)
		recorder, deps.Jobs, deps.Ledger = jobs, jobs, db
	}

	deps.Runner = pipeline.NewProcessor(layout, pl, recorder, logger)
	e, err := server.New(deps)
	if err != nil {
		logger.Error("failed to build http server", "error", err)
		return 1
	}

	var hs *server.HealthServer
	if cfg.Server.GRPCHealthAddr != "" {
		hs, err = server.NewHealthServer(cfg.Server.GRPCHealthAddr, logger)
		if err != nil {
			logger.Error("failed to listen for grpc health", "error", err, "addr", cfg.Server.GRPCHealthAddr)
			return 1
		}
		go func() {
			if err := hs.Serve(); err != nil {
				logger.Error("grpc health serve failed", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("http.listening", "addr", cfg.Server.HTTPAddr, "provider", cfg.LLM.Provider, "engine", cfg.PDF.Engine)
		if err := e.Start(cfg.Server.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if hs != nil {
		hs.Stop()
	}
	logger.Info("stopped")
	return 0
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
