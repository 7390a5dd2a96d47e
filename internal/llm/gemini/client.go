// Package gemini calls the Google Generative Language REST API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

const (
	providerName   = "gemini"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash-lite"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration // 0 = wait for the provider
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate implements llm.Generator. Generation parameters are left at the
// provider defaults and the call is never retried.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	c.logger.Info("llm.generate.start", "provider", providerName, "model", c.cfg.Model, "prompt_len", len(prompt))

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Model))
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		if status != 0 {
			err = errors.New(errorMessage(raw, err))
		}
		c.logger.Error("llm.generate.http_error", "provider", providerName, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", &common.ProviderError{Provider: providerName, Status: status, Err: err}
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", &common.ProviderError{Provider: providerName, Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(gr.Candidates) == 0 {
		reason := "no candidates in response"
		if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + gr.PromptFeedback.BlockReason
		}
		return "", &common.ProviderError{Provider: providerName, Status: status, Err: errors.New(reason)}
	}

	var b strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", &common.ProviderError{Provider: providerName, Status: status,
			Err: fmt.Errorf("empty candidate (finish reason %q)", gr.Candidates[0].FinishReason)}
	}

	c.logger.Info("llm.generate.ok", "provider", providerName, "chars", b.Len(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return b.String(), nil
}

func errorMessage(raw []byte, fallback error) string {
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
		if er.Error.Status != "" {
			return er.Error.Status + ": " + er.Error.Message
		}
		return er.Error.Message
	}
	return fallback.Error()
}
