// Package errors provides severity-aware error types.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// RateDeckError is a structured error with context.
type RateDeckError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Source      string   `json:"source,omitempty"`
	Row         int64    `json:"row,omitempty"`
	Recoverable bool     `json:"recoverable"`
}

func (e *RateDeckError) Error() string {
	switch {
	case e.Source != "" && e.Row > 0:
		return fmt.Sprintf("[%s] %s: %s (%s, row %d)", e.Severity, e.Code, e.Message, e.Source, e.Row)
	case e.Source != "":
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Severity, e.Code, e.Message, e.Source)
	default:
		return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
	}
}

// Is matches any *RateDeckError carrying the same code, so the sentinels below
// work with errors.Is regardless of message or location.
func (e *RateDeckError) Is(target error) bool {
	t, ok := target.(*RateDeckError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeParseFailed  = "PARSE_FAILED"
	ErrCodeInvalidRate  = "INVALID_RATE"
	ErrCodeRunNotFound  = "RUN_NOT_FOUND"
	ErrCodeInvalidRule  = "INVALID_RULE"
)

// MissingInputMessage is the message carried by every invalid-input error
// raised by the comparison engine.
const MissingInputMessage = "Missing a file name or fileData in worker"

// Sentinels for errors.Is.
var (
	ErrInvalidInput = &RateDeckError{Code: ErrCodeInvalidInput}
	ErrParseFailed  = &RateDeckError{Code: ErrCodeParseFailed}
	ErrInvalidRate  = &RateDeckError{Code: ErrCodeInvalidRate}
	ErrRunNotFound  = &RateDeckError{Code: ErrCodeRunNotFound}
	ErrInvalidRule  = &RateDeckError{Code: ErrCodeInvalidRule}
)

// NewInvalidInputError creates the error returned when a comparison is missing
// a file name or a dataset.
func NewInvalidInputError() *RateDeckError {
	return &RateDeckError{
		Code:        ErrCodeInvalidInput,
		Message:     MissingInputMessage,
		Severity:    SeverityFatal,
		Recoverable: false,
	}
}

// NewParseError creates an error for a rate sheet that could not be read.
func NewParseError(source string, row int64, msg string) *RateDeckError {
	return &RateDeckError{
		Code:        ErrCodeParseFailed,
		Message:     msg,
		Severity:    SeverityError,
		Source:      source,
		Row:         row,
		Recoverable: false,
	}
}

// NewInvalidRateError creates an error for a rate that is not a finite,
// non-negative number.
func NewInvalidRateError(source string, row int64, raw string) *RateDeckError {
	return &RateDeckError{
		Code:        ErrCodeInvalidRate,
		Message:     fmt.Sprintf("Rate is not a finite non-negative number: %q", raw),
		Severity:    SeverityError,
		Source:      source,
		Row:         row,
		Recoverable: false,
	}
}

// NewRunNotFoundError creates an error for an unknown archived run.
func NewRunNotFoundError(id string) *RateDeckError {
	return &RateDeckError{
		Code:        ErrCodeRunNotFound,
		Message:     fmt.Sprintf("Comparison run not found: %s", id),
		Severity:    SeverityWarning,
		Recoverable: true,
	}
}

// NewInvalidRuleError creates an error for a malformed adjustment rule.
func NewInvalidRuleError(rule, msg string) *RateDeckError {
	return &RateDeckError{
		Code:        ErrCodeInvalidRule,
		Message:     msg,
		Severity:    SeverityError,
		Source:      rule,
		Recoverable: false,
	}
}

// IsInvalidInput reports whether err is, or wraps, an invalid-input error.
func IsInvalidInput(err error) bool {
	return stderrors.Is(err, ErrInvalidInput)
}

// IsNotFound reports whether err is, or wraps, a run-not-found error.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrRunNotFound)
}
