// Package apierrors maps the registry's domain error taxonomy (core.Err*)
// onto the HTTP error envelope the REST surface returns.
package apierrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/strategylib/control-plane/internal/core"
)

// ErrorCode identifies one of the domain error classes from spec §7.
type ErrorCode string

const (
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	CodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeNoRollbackTarget  ErrorCode = "NO_ROLLBACK_TARGET"
	CodeDependencyMissing ErrorCode = "DEPENDENCY_MISSING"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeInternal          ErrorCode = "INTERNAL"
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// APIError is the structured error the REST surface returns.
type APIError struct {
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse wraps APIError for the JSON body, matching spec §7's
// `{detail: string | object}` shape by nesting the full error under
// "error" and mirroring its message under "detail" for callers that only
// read the flat field.
type ErrorResponse struct {
	Error  APIError    `json:"error"`
	Detail interface{} `json:"detail"`
}

func New(code ErrorCode, message string) *APIError {
	return &APIError{Code: code, Message: message, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

func (e *APIError) WithDetails(details interface{}) *APIError {
	e.Details = details
	return e
}

func (e *APIError) WithRequestID(requestID string) *APIError {
	e.RequestID = requestID
	return e
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// StatusCode maps an ErrorCode to the HTTP status spec §7 specifies.
func (e *APIError) StatusCode() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeValidationFailed, CodeInvalidTransition, CodeNoRollbackTarget, CodeDependencyMissing:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Write serializes e as the JSON error envelope with the matching status.
func Write(w http.ResponseWriter, e *APIError) {
	detail := interface{}(e.Message)
	if e.Details != nil {
		detail = e.Details
	}
	resp := ErrorResponse{Error: *e, Detail: detail}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode())
	_ = json.NewEncoder(w).Encode(resp)
}

// FromDomainError classifies err against the core.Err* sentinels and
// writes the matching APIError. Unrecognized errors are treated as
// internal failures; the caller-visible message never leaks err's text
// for that case, only a generic one, to avoid echoing implementation
// detail the caller can't act on.
func FromDomainError(w http.ResponseWriter, requestID string, err error) {
	var valErr *core.ValidationError

	switch {
	case errors.As(err, &valErr):
		Write(w, New(CodeValidationFailed, "validation failed").WithDetails(valErr.Result).WithRequestID(requestID))
	case errors.Is(err, core.ErrNotFound):
		Write(w, New(CodeNotFound, err.Error()).WithRequestID(requestID))
	case errors.Is(err, core.ErrAlreadyExists):
		Write(w, New(CodeAlreadyExists, err.Error()).WithRequestID(requestID))
	case errors.Is(err, core.ErrInvalidTransition):
		Write(w, New(CodeInvalidTransition, err.Error()).WithRequestID(requestID))
	case errors.Is(err, core.ErrNoRollbackTarget):
		Write(w, New(CodeNoRollbackTarget, err.Error()).WithRequestID(requestID))
	case errors.Is(err, core.ErrDependencyMissing):
		Write(w, New(CodeDependencyMissing, err.Error()).WithRequestID(requestID))
	case errors.Is(err, core.ErrConflict):
		Write(w, New(CodeConflict, err.Error()).WithRequestID(requestID))
	default:
		Write(w, New(CodeInternal, "an internal error occurred").WithRequestID(requestID))
	}
}
