package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// RecordExtractor is the per-file extraction the processor drives.
type RecordExtractor interface {
	Extract(ctx context.Context, pdfPath string) (llm.InvoiceRecord, error)
}

// JobRecorder receives one entry per file attempt. Optional.
type JobRecorder interface {
	Start(ctx context.Context, batchID, fileName string) (string, error)
	FinishSuccess(ctx context.Context, jobID string) error
	FinishFailure(ctx context.Context, jobID string, kind constants.ErrorKind, message, raw string) error
}

type Upload struct {
	Name string
	Data []byte
}

// FileOutcome reports what happened to one upload.
type FileOutcome struct {
	File     string              `json:"file"`
	Status   string              `json:"status"`
	Kind     constants.ErrorKind `json:"kind,omitempty"`
	Error    string              `json:"error,omitempty"`
	Document string              `json:"document,omitempty"`
}

type BatchResult struct {
	BatchID      string             `json:"batch_id"`
	Outcomes     []FileOutcome      `json:"outcomes"`
	Rows         []export.ExportRow `json:"rows"`
	TablePath    string             `json:"table_path,omitempty"`    // empty when no rows
	WorkbookPath string             `json:"workbook_path,omitempty"` // empty when no rows
}

func (r BatchResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Processor runs batches one at a time, files strictly in upload order.
type Processor struct {
	mu        sync.Mutex
	layout    storage.Layout
	extractor RecordExtractor
	jobs      JobRecorder
	logger    *slog.Logger
}

// NewProcessor wires a processor; jobs may be nil.
func NewProcessor(layout storage.Layout, extractor RecordExtractor, jobs JobRecorder, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{layout: layout, extractor: extractor, jobs: jobs, logger: logger}
}

// RunBatch processes uploads sequentially. A failing file is reported and
// skipped. If any file succeeded the table is rewritten from this batch's rows;
// otherwise no table is written. The error covers only the table write.
func (p *Processor) RunBatch(ctx context.Context, uploads []Upload) (BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	res := BatchResult{BatchID: uuid.NewString(), Outcomes: make([]FileOutcome, 0, len(uploads))}
	ctx = common.WithBatchID(ctx, res.BatchID)
	log := p.logger.With("batch_id", res.BatchID)
	log.Info("batch.start", "files", len(uploads))

	for _, up := range uploads {
		log.Info("batch.file.processing", "file", up.Name)

		out, row, ok := p.runFile(ctx, log, res.BatchID, up)
		res.Outcomes = append(res.Outcomes, out)
		if ok {
			res.Rows = append(res.Rows, row)
		}
	}

	if len(res.Rows) == 0 {
		log.Warn("batch.empty", "files", len(uploads), "elapsed_ms", time.Since(start).Milliseconds())
		return res, nil
	}

	if err := export.WriteCSV(p.layout.TablePath(), res.Rows); err != nil {
		log.Error("batch.table.failed", "error", err)
		return res, fmt.Errorf("write table: %w", err)
	}
	res.TablePath = p.layout.TablePath()

	if err := export.WriteXLSX(p.layout.WorkbookPath(), res.Rows); err != nil {
		log.Error("batch.workbook.failed", "error", err)
		return res, fmt.Errorf("write workbook: %w", err)
	}
	res.WorkbookPath = p.layout.WorkbookPath()

	log.Info("batch.done",
		"files", len(uploads),
		"rows", len(res.Rows),
		"failed", res.Failed(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (p *Processor) runFile(ctx context.Context, log *slog.Logger, batchID string, up Upload) (FileOutcome, export.ExportRow, bool) {
	out := FileOutcome{File: up.Name}
	jobID := p.startJob(ctx, log, batchID, up.Name)

	fail := func(kind constants.ErrorKind, err error) (FileOutcome, export.ExportRow, bool) {
		out.Status = StatusFailed
		out.Kind = kind
		out.Error = err.Error()
		log.Error("batch.file.failed", "file", up.Name, "kind", kind, "error", err)
		p.finishJob(ctx, log, jobID, kind, err)
		return out, export.ExportRow{}, false
	}

	if err := ctx.Err(); err != nil {
		return fail(constants.KindUnknown, err)
	}

	pdfPath, err := p.layout.SaveUpload(up.Name, bytes.NewReader(up.Data))
	if err != nil {
		return fail(constants.KindIO, fmt.Errorf("save upload: %w", err))
	}

	rec, err := p.extractor.Extract(ctx, pdfPath)
	if err != nil {
		return fail(common.ErrorKind(err), err)
	}

	docPath, err := p.layout.DocumentPath(up.Name)
	if err != nil {
		return fail(constants.KindIO, err)
	}
	if err := export.WriteJSONDocument(docPath, rec); err != nil {
		return fail(constants.KindIO, err)
	}

	out.Status = StatusDone
	out.Document = docPath
	log.Info("batch.file.done", "file", up.Name, "document", docPath)
	p.finishJob(ctx, log, jobID, "", nil)
	return out, export.Flatten(up.Name, rec), true
}

// Ledger failures are logged and never affect the batch.
func (p *Processor) startJob(ctx context.Context, log *slog.Logger, batchID, name string) string {
	if p.jobs == nil {
		return ""
	}
	id, err := p.jobs.Start(context.WithoutCancel(ctx), batchID, name)
	if err != nil {
		log.Warn("batch.ledger.start_failed", "file", name, "error", err)
		return ""
	}
	return id
}

func (p *Processor) finishJob(ctx context.Context, log *slog.Logger, jobID string, kind constants.ErrorKind, cause error) {
	if p.jobs == nil || jobID == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var err error
	if cause == nil {
		err = p.jobs.FinishSuccess(ctx, jobID)
	} else {
		err = p.jobs.FinishFailure(ctx, jobID, kind, cause.Error(), common.RawResponse(cause))
	}
	if err != nil {
		log.Warn("batch.ledger.finish_failed", "job_id", jobID, "error", err)
	}
}
