package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stdout, stderr []byte
	err            error
	gotName        string
	gotArgs        []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.gotName = name
	f.gotArgs = args
	return f.stdout, f.stderr, f.err
}

func TestPopplerExtractor_SplitsOnFormFeed(t *testing.T) {
	path := writeTemp(t, "in.pdf", []byte("%PDF-1.4"))
	r := &fakeRunner{stdout: []byte("Page one\f\fPage three\f")}

	res, err := NewPopplerExtractor("", r, nil).Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "pdftotext", r.gotName)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix", path, "-"}, r.gotArgs)
	assert.Equal(t, "Page one\nPage three\n", res.Text)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 2, res.TextPages)
	assert.Equal(t, MethodPdftotext, res.Method)
}

func TestPopplerExtractor_RunnerFailure(t *testing.T) {
	path := writeTemp(t, "in.pdf", []byte("junk"))
	r := &fakeRunner{stderr: []byte("Syntax Error: Couldn't find trailer dictionary"), err: errors.New("exit status 1")}

	_, err := NewPopplerExtractor("/usr/bin/pdftotext", r, nil).Extract(context.Background(), path)
	var readErr *common.ReadError
	require.ErrorAs(t, err, &readErr)
	assert.Contains(t, err.Error(), "trailer dictionary")
}

func TestNew_SelectsEngine(t *testing.T) {
	ex, err := New(common.PDFConfig{Engine: common.EngineNative}, nil)
	require.NoError(t, err)
	assert.IsType(t, &PDFExtractor{}, ex)

	ex, err = New(common.PDFConfig{Engine: common.EnginePdftotext}, nil)
	require.NoError(t, err)
	assert.IsType(t, &PopplerExtractor{}, ex)

	_, err = New(common.PDFConfig{Engine: "tesseract"}, nil)
	assert.Error(t, err)
}
