package common

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
)

// NewAppError builds an AppError.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ReadError reports a PDF that does not exist or cannot be parsed.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read pdf %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ProviderError reports a failed call to the generative-text provider:
// transport, authentication, non-2xx status or an unusable response body.
type ProviderError struct {
	Provider string
	Status   int // 0 when no HTTP response was received
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ParseError reports model output that does not conform to the invoice schema.
// Raw holds the text that was rejected.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrorKind classifies err for reporting.
func ErrorKind(err error) constants.ErrorKind {
	var (
		readErr     *ReadError
		providerErr *ProviderError
		parseErr    *ParseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &readErr):
		return constants.KindRead
	case errors.As(err, &providerErr):
		return constants.KindProvider
	case errors.As(err, &parseErr):
		return constants.KindParse
	default:
		return constants.KindUnknown
	}
}

// RawResponse returns the rejected model output carried by a ParseError, if any.
func RawResponse(err error) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Raw
	}
	return ""
}
