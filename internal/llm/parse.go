package llm

import (
	"fmt"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// Parse turns raw model output into an InvoiceRecord. Any failure is a
// *common.ParseError carrying the raw text.
func (s *Schema) Parse(text string) (InvoiceRecord, error) {
	fail := func(err error) (InvoiceRecord, error) {
		return InvoiceRecord{}, &common.ParseError{Raw: text, Err: err}
	}

	m, err := ExtractObject(StripFences(text))
	if err != nil {
		return fail(err)
	}

	if dropped := s.dropUnknownKeys(m); len(dropped) > 0 {
		s.logger.Warn("llm.parse.unknown_keys_dropped", "keys", dropped)
	}

	if err := s.validate(m); err != nil {
		return fail(err)
	}

	var rec InvoiceRecord
	if err := reencode(m, &rec); err != nil {
		return fail(fmt.Errorf("decode record: %w", err))
	}
	if rec.LineItems == nil {
		rec.LineItems = []LineItem{}
	}
	return rec, nil
}
