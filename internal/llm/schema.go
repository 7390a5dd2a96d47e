package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tmc/langchaingo/outputparser"
)

// schemaURL names the compiled schema in validation errors, independent of the working directory.
const schemaURL = "mem://invoice.json"

// FieldType is the JSON shape expected for a field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeNumber    FieldType = "number"
	TypeLineItems FieldType = "line_items"
)

type Field struct {
	Name        string
	Description string
	Type        FieldType
	Nullable    bool
}

// InvoiceFields is the fixed, ordered invoice field list.
var InvoiceFields = []Field{
	{Name: "invoice_no", Description: "Invoice number (string)", Type: TypeString},
	{Name: "date", Description: "Invoice date in YYYY-MM-DD format", Type: TypeString},
	{Name: "billed_to", Description: "Company or person being billed", Type: TypeString},
	{Name: "address", Description: "Billing address", Type: TypeString},
	{Name: "line_items", Description: "Array of objects with 'description', 'quantity', 'unit_price', and 'amount'", Type: TypeLineItems},
	{Name: "subtotal", Description: "Subtotal amount (number)", Type: TypeNumber},
	{Name: "discount", Description: "Discount amount (number)", Type: TypeNumber, Nullable: true},
	{Name: "shipping", Description: "Shipping cost (number)", Type: TypeNumber, Nullable: true},
	{Name: "total", Description: "Total amount (number)", Type: TypeNumber},
	{Name: "notes", Description: "Additional notes (string)", Type: TypeString, Nullable: true},
	{Name: "terms", Description: "Payment terms or order ID (string)", Type: TypeString, Nullable: true},
}

// Schema binds a field list to its prompt instructions and its validator.
// It is built once and never mutated.
type Schema struct {
	fields       []Field
	index        map[string]struct{}
	instructions string
	jsonSchema   map[string]any
	compiled     *jsonschema.Schema
	logger       *slog.Logger
}

// NewSchema compiles fields into a Schema.
func NewSchema(fields []Field, logger *slog.Logger) (*Schema, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema: no fields")
	}

	s := &Schema{
		fields: append([]Field(nil), fields...),
		index:  make(map[string]struct{}, len(fields)),
		logger: logger,
	}
	for _, f := range s.fields {
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate field %q", f.Name)
		}
		s.index[f.Name] = struct{}{}
	}

	s.instructions = buildFormatInstructions(s.fields)
	s.jsonSchema = buildJSONSchema(s.fields)

	compiled, err := compileJSONSchema(s.jsonSchema)
	if err != nil {
		return nil, err
	}
	s.compiled = compiled
	return s, nil
}

// InvoiceSchema returns the Schema over InvoiceFields.
func InvoiceSchema(logger *slog.Logger) (*Schema, error) {
	return NewSchema(InvoiceFields, logger)
}

// Fields returns a copy of the ordered field list.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Names returns the field names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// FormatInstructions is the deterministic instruction block embedded in prompts.
func (s *Schema) FormatInstructions() string { return s.instructions }

// JSONSchema returns the JSON-Schema document used for validation.
func (s *Schema) JSONSchema() map[string]any { return s.jsonSchema }

// buildFormatInstructions renders the langchaingo structured-output block.
// That parser types every key as string, so each line is rewritten with the
// type the validator enforces.
func buildFormatInstructions(fields []Field) string {
	rs := make([]outputparser.ResponseSchema, 0, len(fields))
	for _, f := range fields {
		rs = append(rs, outputparser.ResponseSchema{Name: f.Name, Description: f.Description})
	}
	out := outputparser.NewStructured(rs).GetFormatInstructions()
	for _, f := range fields {
		out = strings.Replace(out,
			fmt.Sprintf("%q: string //", f.Name),
			fmt.Sprintf("%q: %s //", f.Name, f.TypeHint()), 1)
	}
	return out
}

// TypeHint is the JSON type shown to the model for f.
func (f Field) TypeHint() string {
	var t string
	switch f.Type {
	case TypeLineItems:
		t = "array of {description: string, quantity: number, unit_price: number, amount: number}"
	default:
		t = string(f.Type)
	}
	if f.Nullable {
		t += " or null"
	}
	return t
}

func buildJSONSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldProp(f)
		if !f.Nullable {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func fieldProp(f Field) map[string]any {
	if f.Type == TypeLineItems {
		return map[string]any{
			"type":  "array",
			"items": lineItemProp(),
		}
	}
	if f.Nullable {
		return map[string]any{"type": []string{string(f.Type), "null"}}
	}
	return map[string]any{"type": string(f.Type)}
}

func lineItemProp() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": map[string]any{"type": "string"},
			"quantity":    map[string]any{"type": "number"},
			"unit_price":  map[string]any{"type": "number"},
			"amount":      map[string]any{"type": "number"},
		},
		"required": []string{"description", "quantity", "unit_price", "amount"},
	}
}

func compileJSONSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}
