package llm

import (
	"context"
	"encoding/json"
)

// InvoiceRecord is the structured result for one invoice. Keys and order
// follow InvoiceFields; numbers are kept exactly as the model wrote them.
type InvoiceRecord struct {
	InvoiceNo string       `json:"invoice_no"`
	Date      string       `json:"date"`
	BilledTo  string       `json:"billed_to"`
	Address   string       `json:"address"`
	LineItems []LineItem   `json:"line_items"`
	Subtotal  json.Number  `json:"subtotal"`
	Discount  *json.Number `json:"discount"`
	Shipping  *json.Number `json:"shipping"`
	Total     json.Number  `json:"total"`
	Notes     *string      `json:"notes"`
	Terms     *string      `json:"terms"`
}

type LineItem struct {
	Description string      `json:"description"`
	Quantity    json.Number `json:"quantity"`
	UnitPrice   json.Number `json:"unit_price"`
	Amount      json.Number `json:"amount"`
}

// Generator sends one prompt to a generative-text model and returns its raw text.
// Implementations report failures as *common.ProviderError.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
