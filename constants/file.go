package constants

import "strings"

// Output artifacts of a batch.
const (
	TableFileName    = "invoices_extracted.csv"
	WorkbookFileName = "invoices_extracted.xlsx"
	DocumentExt      = ".json"

	CSVContentType  = "text/csv"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AllowedExtensions holds the upload extensions the extractor accepts.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// AllowedExt reports whether ext (with or without the dot) is an accepted upload type.
func AllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
