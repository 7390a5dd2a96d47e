// Package storage owns the on-disk layout: uploads and per-file documents in
// the JSON directory, the aggregate table in the table directory.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

var ErrInvalidName = errors.New("invalid file name")

type Layout struct {
	JSONDir  string
	TableDir string
}

func NewLayout(jsonDir, tableDir string) Layout {
	return Layout{JSONDir: jsonDir, TableDir: tableDir}
}

// EnsureDirs creates both directories if absent.
func (l Layout) EnsureDirs() error {
	for _, d := range []string{l.JSONDir, l.TableDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// CleanName reduces an uploaded name to its base name and rejects names that
// would escape the directory.
func CleanName(name string) (string, error) {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(name, `\`, "/")))
	switch base {
	case "", ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}

// Stem returns name without its extension.
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// UploadPath is where the raw bytes of an upload are kept.
func (l Layout) UploadPath(name string) (string, error) {
	base, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.JSONDir, base), nil
}

// DocumentPath is json/<stem>.json for the upload name.
func (l Layout) DocumentPath(name string) (string, error) {
	base, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.JSONDir, Stem(base)+constants.DocumentExt), nil
}

func (l Layout) TablePath() string {
	return filepath.Join(l.TableDir, constants.TableFileName)
}

func (l Layout) WorkbookPath() string {
	return filepath.Join(l.TableDir, constants.WorkbookFileName)
}

// SaveUpload writes the upload under its base name, replacing any earlier copy.
func (l Layout) SaveUpload(name string, r io.Reader) (string, error) {
	path, err := l.UploadPath(name)
	if err != nil {
		return "", err
	}
	if err := WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	}); err != nil {
		return "", err
	}
	return path, nil
}

// ReadTable returns the current table bytes; os.ErrNotExist when no batch has produced one.
func (l Layout) ReadTable() ([]byte, error) {
	return os.ReadFile(l.TablePath())
}

func (l Layout) ReadWorkbook() ([]byte, error) {
	return os.ReadFile(l.WorkbookPath())
}

// WriteFileAtomic streams into a temp file in the target directory and
// renames it over path.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
