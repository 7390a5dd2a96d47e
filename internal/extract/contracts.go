package extract

import (
	"context"
	"time"
)

// TextExtractor turns a PDF on disk into prompt text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text      string
	Pages     int // pages in the document
	TextPages int // pages that contributed text
	Method    string
	Duration  time.Duration
	Warnings  []string
}

const (
	MethodNative    = "pdf-native"
	MethodPdftotext = "pdftotext"
)
