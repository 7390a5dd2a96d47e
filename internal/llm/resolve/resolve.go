// Package resolve builds the configured llm.Generator.
package resolve

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/openai"
)

func New(cfg common.LLMConfig, logger *slog.Logger) (llm.Generator, error) {
	switch cfg.Provider {
	case "", common.ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger), nil
	case common.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
