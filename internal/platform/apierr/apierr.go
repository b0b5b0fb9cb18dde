package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
)

type Error struct {
	Status int
	Code   string
	Err    error

	// Details is rendered next to the message (candidates, diagnostics).
	Details any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps a core failure onto an HTTP status. Untyped errors become 500.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	se, ok := survey.AsError(err)
	if !ok {
		return New(http.StatusInternalServerError, "internal", err)
	}
	out := New(statusFor(se.Code), string(se.Code), err)
	switch {
	case len(se.Candidates) > 0:
		out.Details = map[string]any{"candidates": se.Candidates}
	case se.Suggestions != nil:
		out.Details = map[string]any{"suggestions": se.Suggestions}
	}
	return out
}

func statusFor(code survey.ErrorCode) int {
	switch code {
	case survey.CodeNotFound:
		return http.StatusNotFound
	case survey.CodeAmbiguousMatch:
		return http.StatusConflict
	case survey.CodeCodeMismatch, survey.CodeValidation:
		return http.StatusBadRequest
	case survey.CodeTimeout:
		return http.StatusGatewayTimeout
	case survey.CodeBackendFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
