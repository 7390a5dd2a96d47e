package export

import (
	"encoding/json"
	"io"

	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

// WriteJSONDocument writes rec, indented, to path. Null fields stay null.
func WriteJSONDocument(path string, rec llm.InvoiceRecord) error {
	return storage.WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(rec)
	})
}
