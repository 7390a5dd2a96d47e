package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

// BatchRunner runs one extraction batch.
type BatchRunner interface {
	RunBatch(ctx context.Context, uploads []pipeline.Upload) (pipeline.BatchResult, error)
}

// JobLister reads the run ledger.
type JobLister interface {
	ListRecent(ctx context.Context, limit int) ([]repository.ExtractJob, error)
	ListBatch(ctx context.Context, batchID string) ([]repository.ExtractJob, error)
}

// LedgerPinger reports whether the run ledger database is reachable.
type LedgerPinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Dependencies holds all handler dependencies
type Dependencies struct {
	Runner      BatchRunner
	Layout      storage.Layout
	Jobs        JobLister    // nil when the ledger is disabled
	Ledger      LedgerPinger // nil when the ledger is disabled
	MaxUploadMB int
	Logger      *slog.Logger
}

type templateRenderer struct {
	tmpl *template.Template
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

// New builds the echo instance with middleware and routes registered.
func New(deps Dependencies) (*echo.Echo, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxUploadMB <= 0 {
		deps.MaxUploadMB = 32
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = &templateRenderer{tmpl: tmpl}
	e.HTTPErrorHandler = ErrorHandler(deps.Logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			c.SetRequest(c.Request().WithContext(common.WithRequestID(c.Request().Context(), id)))
		},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"request_id", v.RequestID, "method", v.Method, "uri", v.URI, "status", v.Status, "latency_ms", v.Latency.Milliseconds()}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			deps.Logger.Info("http.request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", deps.MaxUploadMB)))

	RegisterRoutes(e, NewHandler(deps))
	return e, nil
}

// RegisterRoutes registers all routes with the Echo instance
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/", h.HandleIndex)
	e.POST("/extract", h.HandleExtract)
	e.GET("/download/:name", h.HandleDownload)
	e.GET("/health", h.HandleHealth)

	api := e.Group("/api")
	api.POST("/batches", h.HandleCreateBatch)
	api.GET("/jobs", h.HandleListJobs)
	api.GET("/batches/:id/jobs", h.HandleListBatchJobs)
}
