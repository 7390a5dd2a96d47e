package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

const providerName = "openai"

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate implements llm.Generator with a single-message chat completion and
// default sampling parameters.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	c.logger.Info("llm.generate.start", "provider", providerName, "model", c.cfg.Model, "prompt_len", len(prompt))

	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		if status != 0 {
			err = errors.New(errorMessage(raw, err))
		}
		c.logger.Error("llm.generate.http_error", "provider", providerName, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", &common.ProviderError{Provider: providerName, Status: status, Err: err}
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", &common.ProviderError{Provider: providerName, Status: status, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(cc.Choices) == 0 {
		return "", &common.ProviderError{Provider: providerName, Status: status, Err: errors.New("no choices in response")}
	}

	content := cc.Choices[0].Message.Content
	c.logger.Info("llm.generate.ok", "provider", providerName, "chars", len(content),
		"elapsed_ms", time.Since(start).Milliseconds())
	return content, nil
}

func errorMessage(raw []byte, fallback error) string {
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
		return er.Error.Message
	}
	return fallback.Error()
}
