package export

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// Columns is the fixed table header.
var Columns = []string{
	"file", "invoice_no", "date", "billed_to", "address",
	"subtotal", "discount", "shipping", "total", "notes", "terms", "line_items",
}

// ExportRow is one table row. Every cell is text; null values are empty.
type ExportRow struct {
	File      string `json:"file"`
	InvoiceNo string `json:"invoice_no"`
	Date      string `json:"date"`
	BilledTo  string `json:"billed_to"`
	Address   string `json:"address"`
	Subtotal  string `json:"subtotal"`
	Discount  string `json:"discount"`
	Shipping  string `json:"shipping"`
	Total     string `json:"total"`
	Notes     string `json:"notes"`
	Terms     string `json:"terms"`
	LineItems string `json:"line_items"` // compact JSON array
}

// Flatten builds the row for a parsed record.
func Flatten(fileName string, rec llm.InvoiceRecord) ExportRow {
	return ExportRow{
		File:      fileName,
		InvoiceNo: rec.InvoiceNo,
		Date:      rec.Date,
		BilledTo:  rec.BilledTo,
		Address:   rec.Address,
		Subtotal:  rec.Subtotal.String(),
		Discount:  numberOrEmpty(rec.Discount),
		Shipping:  numberOrEmpty(rec.Shipping),
		Total:     rec.Total.String(),
		Notes:     stringOrEmpty(rec.Notes),
		Terms:     stringOrEmpty(rec.Terms),
		LineItems: lineItemsText(rec.LineItems),
	}
}

// Values returns the cells in Columns order.
func (r ExportRow) Values() []string {
	return []string{
		r.File, r.InvoiceNo, r.Date, r.BilledTo, r.Address,
		r.Subtotal, r.Discount, r.Shipping, r.Total, r.Notes, r.Terms, r.LineItems,
	}
}

func lineItemsText(items []llm.LineItem) string {
	if len(items) == 0 {
		return "[]"
	}
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func numberOrEmpty(n *json.Number) string {
	if n == nil {
		return ""
	}
	return n.String()
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
