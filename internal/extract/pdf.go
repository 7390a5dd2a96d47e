package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads text with the pure-Go ledongthuc/pdf reader.
type PDFExtractor struct {
	logger *slog.Logger
}

func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{logger: logger}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (res TextExtractionResult, err error) {
	start := time.Now()
	res.Method = MethodNative

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return res, &common.ReadError{Path: path, Err: statErr}
	}

	// the reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("pdf.extract.panic", "path", path, "panic", r)
			res = TextExtractionResult{Method: MethodNative}
			err = &common.ReadError{Path: path, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	f, r, openErr := pdf.Open(path)
	if openErr != nil {
		return res, &common.ReadError{Path: path, Err: openErr}
	}
	defer func() { _ = f.Close() }()

	total := r.NumPage()
	if total == 0 {
		return res, &common.ReadError{Path: path, Err: errors.New("no pages")}
	}

	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			e.logger.Warn("pdf.extract.page_skipped", "path", path, "page", i, "error", pageErr)
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: %v", i, pageErr))
			continue
		}
		pages = append(pages, text)
	}

	res.Text, res.TextPages = JoinPages(pages)
	res.Pages = total
	res.Duration = time.Since(start)
	e.logger.Debug("pdf.extract.ok",
		"path", path,
		"pages", res.Pages,
		"text_pages", res.TextPages,
		"chars", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
