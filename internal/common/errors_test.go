package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want constants.ErrorKind
	}{
		{"nil", nil, ""},
		{"read", &ReadError{Path: "a.pdf", Err: cause}, constants.KindRead},
		{"provider", &ProviderError{Provider: "gemini", Status: 401, Err: cause}, constants.KindProvider},
		{"parse", &ParseError{Raw: "x", Err: cause}, constants.KindParse},
		{"wrapped parse", fmt.Errorf("stage: %w", &ParseError{Err: cause}), constants.KindParse},
		{"other", cause, constants.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}

func TestTypedErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	assert.ErrorIs(t, &ReadError{Err: cause}, cause)
	assert.ErrorIs(t, &ProviderError{Err: cause}, cause)
	assert.ErrorIs(t, &ParseError{Err: cause}, cause)

	assert.Equal(t, "gemini: status 500: boom", (&ProviderError{Provider: "gemini", Status: 500, Err: cause}).Error())
	assert.Equal(t, "gemini: boom", (&ProviderError{Provider: "gemini", Err: cause}).Error())
	assert.Equal(t, "{bad", RawResponse(fmt.Errorf("x: %w", &ParseError{Raw: "{bad", Err: cause})))
	assert.Empty(t, RawResponse(cause))
}

func TestPDFNameRule(t *testing.T) {
	v := NewValidator().
		Field("a", "invoice.PDF", PDFName).
		Field("b", "notes.txt", PDFName).
		Field("c", "", PDFName)
	assert.True(t, v.HasErrors())
	msg := v.ErrorMessage()
	assert.NotContains(t, msg, "'a'")
	assert.Contains(t, msg, "field 'b' with value 'notes.txt': must be a .pdf file")
	assert.Contains(t, msg, "field 'c' with value '': is required")
}

func TestUUIDRule(t *testing.T) {
	v := NewValidator().Field("id", "3f2b8c1e-9a4d-4e57-8a61-2f0c9d7b5e10", UUID)
	assert.False(t, v.HasErrors())

	v = NewValidator().
		Field("a", "not-a-uuid", UUID).
		Field("b", 42, UUID)
	assert.Contains(t, v.ErrorMessage(), "field 'a' with value 'not-a-uuid': must be a valid UUID")
	assert.Contains(t, v.ErrorMessage(), "field 'b' with value '42': must be a string")
}
