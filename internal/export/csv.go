package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

// EncodeCSV writes the header and rows.
func EncodeCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return fmt.Errorf("csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV replaces the table at path with rows.
func WriteCSV(path string, rows []ExportRow) error {
	return storage.WriteFileAtomic(path, func(w io.Writer) error {
		return EncodeCSV(w, rows)
	})
}
