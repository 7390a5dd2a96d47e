package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

const uploadField = "files"

type Handler struct {
	runner BatchRunner
	layout storage.Layout
	jobs   JobLister
	ledger LedgerPinger
	logger *slog.Logger
}

func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: deps.Runner, layout: deps.Layout, jobs: deps.Jobs, ledger: deps.Ledger, logger: logger}
}

// pageData feeds templates/index.html.
type pageData struct {
	Columns  []string
	Result   *pipeline.BatchResult
	Error    string
	Warning  string
	JSONDir  string
	TableDir string
}

func (h *Handler) page() pageData {
	return pageData{Columns: export.Columns, JSONDir: h.layout.JSONDir, TableDir: h.layout.TableDir}
}

func (h *Handler) HandleIndex(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", h.page())
}

// HandleExtract runs a batch from the upload form and renders the results page.
func (h *Handler) HandleExtract(c echo.Context) error {
	data := h.page()

	uploads, apiErr := readUploads(c)
	if apiErr != nil {
		data.Error = apiErr.Message
		return c.Render(apiErr.Status, "index.html", data)
	}

	// The batch outlives a dropped connection so its outputs and ledger rows stay consistent.
	res, err := h.runner.RunBatch(context.WithoutCancel(c.Request().Context()), uploads)
	data.Result = &res
	if err != nil {
		h.logger.Error("server.extract.batch_failed", "batch_id", res.BatchID, "error", err)
		data.Error = err.Error()
		return c.Render(http.StatusInternalServerError, "index.html", data)
	}
	if len(res.Rows) == 0 {
		data.Warning = "No valid invoice data extracted."
	}
	return c.Render(http.StatusOK, "index.html", data)
}

// HandleCreateBatch is the JSON form of HandleExtract.
func (h *Handler) HandleCreateBatch(c echo.Context) error {
	uploads, apiErr := readUploads(c)
	if apiErr != nil {
		return apiErr
	}
	res, err := h.runner.RunBatch(context.WithoutCancel(c.Request().Context()), uploads)
	if err != nil {
		return NewInternalError("batch output could not be written", err)
	}
	if res.Rows == nil {
		res.Rows = []export.ExportRow{}
	}
	return c.JSON(http.StatusOK, res)
}

// HandleDownload serves the table or its workbook companion under the fixed name.
func (h *Handler) HandleDownload(c echo.Context) error {
	name := c.Param("name")

	var (
		data        []byte
		err         error
		contentType string
	)
	switch name {
	case constants.TableFileName:
		data, err = h.layout.ReadTable()
		contentType = constants.CSVContentType
	case constants.WorkbookFileName:
		data, err = h.layout.ReadWorkbook()
		contentType = constants.XLSXContentType
	default:
		return NewNotFoundError("download", name)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return NewNotFoundError("table", name)
	}
	if err != nil {
		return NewInternalError("read "+name, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, contentType, data)
}

func ledgerDisabled() *APIError {
	return &APIError{Status: http.StatusNotFound, Code: "LEDGER_DISABLED", Message: "run ledger is not configured"}
}

func (h *Handler) HandleListJobs(c echo.Context) error {
	if h.jobs == nil {
		return ledgerDisabled()
	}

	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			return NewValidationError("limit must be an integer between 1 and 1000")
		}
		limit = n
	}

	jobs, err := h.jobs.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("list jobs", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// HandleListBatchJobs returns the ledger rows of one batch in processing order.
func (h *Handler) HandleListBatchJobs(c echo.Context) error {
	if h.jobs == nil {
		return ledgerDisabled()
	}
	batchID := c.Param("id")
	if v := common.NewValidator().Field("batch_id", batchID, common.UUID); v.HasErrors() {
		return NewValidationError(v.ErrorMessage())
	}

	jobs, err := h.jobs.ListBatch(c.Request().Context(), batchID)
	if err != nil {
		return NewInternalError("list batch jobs", err)
	}
	if len(jobs) == 0 {
		return NewNotFoundError("batch", batchID)
	}
	return c.JSON(http.StatusOK, map[string]any{"batch_id": batchID, "jobs": jobs, "count": len(jobs)})
}

func (h *Handler) HandleHealth(c echo.Context) error {
	if h.ledger == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	if err := h.ledger.HealthCheck(c.Request().Context(), 2*time.Second); err != nil {
		h.logger.Warn("server.health.ledger_unavailable", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "ledger": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "ledger": "ok"})
}

// readUploads collects the PDFs posted under the "files" field, in form order.
func readUploads(c echo.Context) ([]pipeline.Upload, *APIError) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, NewBadRequestError("expected a multipart form", err)
	}
	headers := form.File[uploadField]
	if len(headers) == 0 {
		return nil, NewValidationError("select one or more PDF files")
	}

	v := common.NewValidator()
	for i, fh := range headers {
		v.Field(fmt.Sprintf("%s[%d]", uploadField, i), fh.Filename, common.PDFName)
	}
	if v.HasErrors() {
		return nil, NewValidationError(v.ErrorMessage())
	}

	uploads := make([]pipeline.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, NewBadRequestError("could not read "+fh.Filename, err)
		}
		uploads = append(uploads, pipeline.Upload{Name: fh.Filename, Data: data})
	}
	return uploads, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}
