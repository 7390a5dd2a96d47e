package extract

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// New returns the extractor selected by cfg.Engine.
func New(cfg common.PDFConfig, logger *slog.Logger) (TextExtractor, error) {
	switch cfg.Engine {
	case "", common.EngineNative:
		return NewPDFExtractor(logger), nil
	case common.EnginePdftotext:
		return NewPopplerExtractor(cfg.Pdftotext, nil, logger), nil
	default:
		return nil, fmt.Errorf("unknown pdf engine %q", cfg.Engine)
	}
}
