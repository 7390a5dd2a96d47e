package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoiceSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := InvoiceSchema(nil)
	require.NoError(t, err)
	return s
}

func TestInvoiceSchema_Names(t *testing.T) {
	s := invoiceSchema(t)
	assert.Equal(t, []string{
		"invoice_no", "date", "billed_to", "address", "line_items",
		"subtotal", "discount", "shipping", "total", "notes", "terms",
	}, s.Names())
}

func TestInvoiceSchema_FieldsIsACopy(t *testing.T) {
	s := invoiceSchema(t)
	f := s.Fields()
	f[0].Name = "mutated"
	assert.Equal(t, "invoice_no", s.Names()[0])
}

// The record's JSON keys must track the schema field list.
func TestInvoiceRecord_KeysMatchSchema(t *testing.T) {
	s := invoiceSchema(t)
	b, err := json.Marshal(InvoiceRecord{})
	require.NoError(t, err)

	dec := json.NewDecoder(strings.NewReader(string(b)))
	_, err = dec.Token() // {
	require.NoError(t, err)
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		require.NoError(t, dec.Decode(&skip))
	}
	assert.Equal(t, s.Names(), keys)
}

func TestFormatInstructions_Deterministic(t *testing.T) {
	a := invoiceSchema(t).FormatInstructions()
	b := invoiceSchema(t).FormatInstructions()
	assert.Equal(t, a, b)

	assert.Contains(t, a, "```json")
	assert.Contains(t, a, "Invoice number (string)")
	assert.Contains(t, a, `"discount": number or null // Discount amount (number)`)
	assert.Contains(t, a, `"subtotal": number // Subtotal amount (number)`)

	prev := -1
	for _, name := range invoiceSchema(t).Names() {
		idx := strings.Index(a, `"`+name+`"`)
		require.GreaterOrEqual(t, idx, 0, name)
		assert.Greater(t, idx, prev, "field %s out of order", name)
		prev = idx
	}
}

func TestJSONSchema_RequiredAreNonNullable(t *testing.T) {
	js := invoiceSchema(t).JSONSchema()
	required, ok := js["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{
		"invoice_no", "date", "billed_to", "address", "line_items", "subtotal", "total",
	}, required)
}

func TestNewSchema_RejectsDuplicates(t *testing.T) {
	_, err := NewSchema([]Field{
		{Name: "a", Type: TypeString},
		{Name: "a", Type: TypeNumber},
	}, nil)
	assert.Error(t, err)

	_, err = NewSchema(nil, nil)
	assert.Error(t, err)
}

func TestFormatInstructions_StateValidatedTypes(t *testing.T) {
	s := invoiceSchema(t)
	a := s.FormatInstructions()

	want := map[string]string{
		"invoice_no": "string",
		"date":       "string",
		"billed_to":  "string",
		"address":    "string",
		"line_items": "array of {description: string, quantity: number, unit_price: number, amount: number}",
		"subtotal":   "number",
		"discount":   "number or null",
		"shipping":   "number or null",
		"total":      "number",
		"notes":      "string or null",
		"terms":      "string or null",
	}
	for _, f := range s.Fields() {
		assert.Contains(t, a, fmt.Sprintf("%q: %s // %s", f.Name, want[f.Name], f.Description), f.Name)
	}
	assert.NotContains(t, a, `"total": string`)
	assert.NotContains(t, a, `"line_items": string`)

	props := s.JSONSchema()["properties"].(map[string]any)
	for _, f := range s.Fields() {
		typ := props[f.Name].(map[string]any)["type"]
		switch {
		case f.Type == TypeLineItems:
			assert.Equal(t, "array", typ, f.Name)
		case f.Nullable:
			assert.Equal(t, []string{string(f.Type), "null"}, typ, f.Name)
		default:
			assert.Equal(t, string(f.Type), typ, f.Name)
		}
	}
}

func TestParse_ResponseFollowingInstructions(t *testing.T) {
	s := invoiceSchema(t)
	raw := "```json\n" + `{
	"invoice_no": "A100",
	"date": "2024-01-31",
	"billed_to": "Acme",
	"address": "1 Road",
	"line_items": [{"description": "Widget", "quantity": 3, "unit_price": 50.00, "amount": 150.00}],
	"subtotal": 150.00,
	"discount": null,
	"shipping": null,
	"total": 150.00,
	"notes": null,
	"terms": null
}` + "\n```"
	rec, err := s.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, json.Number("150.00"), rec.Total)
	require.Len(t, rec.LineItems, 1)
	assert.Equal(t, json.Number("3"), rec.LineItems[0].Quantity)
}
