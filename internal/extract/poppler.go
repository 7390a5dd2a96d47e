package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// PopplerExtractor shells out to pdftotext and splits pages on form feeds.
type PopplerExtractor struct {
	bin    string
	runner Runner
	logger *slog.Logger
}

// NewPopplerExtractor uses bin (default "pdftotext"); a nil runner executes the real binary.
func NewPopplerExtractor(bin string, runner Runner, logger *slog.Logger) *PopplerExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if bin == "" {
		bin = "pdftotext"
	}
	if runner == nil {
		runner = execRunner{logger: logger}
	}
	return &PopplerExtractor{bin: bin, runner: runner, logger: logger}
}

func (e *PopplerExtractor) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	start := time.Now()
	res := TextExtractionResult{Method: MethodPdftotext}

	if _, err := os.Stat(path); err != nil {
		return res, &common.ReadError{Path: path, Err: err}
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.bin, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		msg := strings.TrimSpace(string(errb))
		if msg == "" {
			msg = err.Error()
		}
		return res, &common.ReadError{Path: path, Err: fmt.Errorf("%s: %s", e.bin, msg)}
	}

	// A form-feed \f terminates each page; the last one leaves an empty tail.
	pages := strings.Split(string(out), "\f")
	if n := len(pages); n > 1 && pages[n-1] == "" {
		pages = pages[:n-1]
	}
	res.Pages = len(pages)
	res.Text, res.TextPages = JoinPages(pages)
	res.Duration = time.Since(start)

	e.logger.Debug("pdftotext.extract.ok", "path", path, "pages", res.Pages, "text_pages", res.TextPages)
	return res, nil
}
