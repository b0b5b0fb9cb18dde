package survey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes resolution and aggregation failure semantics.
type ErrorCode string

const (
	CodeNotFound        ErrorCode = "not_found"
	CodeAmbiguousMatch  ErrorCode = "ambiguous_match"
	CodeCodeMismatch    ErrorCode = "code_mismatch"
	CodeValidation      ErrorCode = "validation"
	CodeBackendFailure  ErrorCode = "backend_failure"
	CodeTimeout         ErrorCode = "timeout"
	CodeDataConsistency ErrorCode = "data_consistency"
)

// Error is the canonical typed failure returned by the core.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error

	// Suggestions carries diagnostics for NotFound (where the code does exist).
	Suggestions *Diagnostics
	// Candidates carries the 1-of-N variation list for AmbiguousMatch.
	Candidates []Candidate
}

// Diagnostics lists where a requested code is known to exist.
type Diagnostics struct {
	Code   string   `json:"code,omitempty"`
	Themes []string `json:"themes,omitempty"`
	Rounds []string `json:"rounds,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates err with a code, leaving already-typed errors untouched.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return NewError(code, op, err.Error(), err)
}

func NotFound(op, message string, diag *Diagnostics) error {
	e := NewError(CodeNotFound, op, message, nil)
	e.Suggestions = diag
	return e
}

func Ambiguous(op, message string, candidates []Candidate) error {
	e := NewError(CodeAmbiguousMatch, op, message, nil)
	e.Candidates = candidates
	return e
}

func Inconsistent(op, message string) error {
	return NewError(CodeDataConsistency, op, message, nil)
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func CodeOf(err error) ErrorCode {
	var se *Error
	if !errors.As(err, &se) {
		return ""
	}
	return se.Code
}

// AsError extracts the typed error, if any.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
