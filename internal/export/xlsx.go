package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/storage"
)

const sheetName = "Invoices"

// EncodeXLSX renders the same table as a workbook.
func EncodeXLSX(rows []ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, err
	}

	for i, h := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	for ri, r := range rows {
		row := ri + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
		for ci, v := range r.Values() {
			write(ci+1, v)
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(sheetName, "A", "A", 28) // file
	_ = f.SetColWidth(sheetName, "B", "C", 14) // invoice no, date
	_ = f.SetColWidth(sheetName, "D", "E", 32) // billed to, address
	_ = f.SetColWidth(sheetName, "F", "I", 12) // amounts
	_ = f.SetColWidth(sheetName, "J", "K", 32) // notes, terms
	_ = f.SetColWidth(sheetName, "L", "L", 60) // line items

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteXLSX replaces the workbook at path with rows.
func WriteXLSX(path string, rows []ExportRow) error {
	data, err := EncodeXLSX(rows)
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}
