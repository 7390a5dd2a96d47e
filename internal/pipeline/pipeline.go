package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// Pipeline turns one PDF into an InvoiceRecord: text extraction, prompt,
// model call, schema parse. Stage errors are returned as they are.
type Pipeline struct {
	text      extract.TextExtractor
	generator llm.Generator
	schema    *llm.Schema
	logger    *slog.Logger
}

func New(text extract.TextExtractor, generator llm.Generator, schema *llm.Schema, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{text: text, generator: generator, schema: schema, logger: logger}
}

func (p *Pipeline) Extract(ctx context.Context, pdfPath string) (llm.InvoiceRecord, error) {
	start := time.Now()

	res, err := p.text.Extract(ctx, pdfPath)
	if err != nil {
		p.logger.Error("pipeline.text.failed", "path", pdfPath, "error", err)
		return llm.InvoiceRecord{}, err
	}
	if res.TextPages == 0 {
		// image-only PDFs still go to the model with an empty body
		p.logger.Warn("pipeline.text.empty", "path", pdfPath, "pages", res.Pages)
	}
	p.logger.Debug("pipeline.text.ok",
		"path", pdfPath,
		"method", res.Method,
		"pages", res.Pages,
		"text_pages", res.TextPages,
		"chars", len(res.Text),
	)

	prompt := llm.BuildPrompt(p.schema.FormatInstructions(), res.Text)

	raw, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		p.logger.Error("pipeline.generate.failed", "path", pdfPath, "error", err)
		return llm.InvoiceRecord{}, err
	}

	rec, err := p.schema.Parse(raw)
	if err != nil {
		p.logger.Error("pipeline.parse.failed", "path", pdfPath, "error", err, "raw_len", len(raw))
		return llm.InvoiceRecord{}, err
	}

	p.logger.Info("pipeline.extract.ok",
		"path", pdfPath,
		"invoice_no", rec.InvoiceNo,
		"line_items", len(rec.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}
