// Package apperr provides structured error handling for Stratum.
//
// Every error carries a Kind that classifies it against the service's
// failure taxonomy and maps it to an HTTP status at the ingress boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	// KindValidation covers bad input: empty query, missing tool id,
	// unsupported file extension.
	KindValidation Kind = "VALIDATION"
	// KindUpstreamHTTP covers non-2xx responses from external services.
	KindUpstreamHTTP Kind = "UPSTREAM_HTTP"
	// KindUpstreamNetwork covers timeouts and transport failures.
	KindUpstreamNetwork Kind = "UPSTREAM_NETWORK"
	// KindDecode covers undecodable content.
	KindDecode Kind = "DECODE"
	// KindModelInfer covers embedding, cross-encoder, and summarizer failures.
	KindModelInfer Kind = "MODEL_INFER"
	// KindStoreWrite covers vector-store write failures.
	KindStoreWrite Kind = "STORE_WRITE"
	// KindInternal covers programmer errors and everything unclassified.
	KindInternal Kind = "INTERNAL"
)

// Codes used across the service. The code is stable API surface for
// clients and log queries; the message is not.
const (
	CodeEmptyQuery      = "EMPTY_QUERY"
	CodeMissingID       = "MISSING_ID"
	CodeMissingToolID   = "MISSING_TOOL_ID"
	CodeUnknownTool     = "UNKNOWN_TOOL"
	CodeUnsupportedType = "UNSUPPORTED_TYPE"
	CodeEmptyContent    = "EMPTY_CONTENT"
	CodeUpstreamStatus  = "UPSTREAM_STATUS"
	CodeUpstreamDial    = "UPSTREAM_DIAL"
	CodeEmbedFailed     = "EMBED_FAILED"
	CodeRerankFailed    = "RERANK_FAILED"
	CodeSummarizeFailed = "SUMMARIZE_FAILED"
	CodeStoreWrite      = "STORE_WRITE_FAILED"
	CodeInternal        = "INTERNAL"
)

// Error is the structured error type used throughout the service.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error

	// Status is the upstream HTTP status for KindUpstreamHTTP errors.
	Status int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so errors.Is works across wrap layers.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus maps the error kind to the status surfaced at the ingress.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WithCause attaches an underlying cause and returns the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// New creates an Error with the given kind, code, and message.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates an Error wrapping a cause. Returns nil for a nil cause.
func Wrap(kind Kind, code, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Validation creates a VALIDATION error.
func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

// UpstreamHTTP creates an UPSTREAM_HTTP error carrying the status code.
func UpstreamHTTP(status int, message string) *Error {
	return &Error{
		Kind:    KindUpstreamHTTP,
		Code:    CodeUpstreamStatus,
		Message: fmt.Sprintf("%s (status %d)", message, status),
		Status:  status,
	}
}

// UpstreamNetwork creates an UPSTREAM_NETWORK error.
func UpstreamNetwork(message string, cause error) *Error {
	return &Error{Kind: KindUpstreamNetwork, Code: CodeUpstreamDial, Message: message, Cause: cause}
}

// ModelInfer creates a MODEL_INFER error.
func ModelInfer(code, message string, cause error) *Error {
	return &Error{Kind: KindModelInfer, Code: code, Message: message, Cause: cause}
}

// StoreWrite creates a STORE_WRITE error.
func StoreWrite(message string, cause error) *Error {
	return &Error{Kind: KindStoreWrite, Code: CodeStoreWrite, Message: message, Cause: cause}
}

// Internal creates an INTERNAL error.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Cause: cause}
}

// KindOf extracts the kind from an error chain. Unclassified errors are
// reported as KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// CodeOf extracts the code from an error chain, or empty string.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// HTTPStatusOf maps any error to the ingress status.
func HTTPStatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.HTTPStatus()
	}
	return http.StatusInternalServerError
}
