// Package apperrors provides the coded error taxonomy shared by the ledger
// engine, the export orchestrator and the RPC surface.
package apperrors

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error that did not originate in this taxonomy.
	CodeUnknown Code = "UNKNOWN"

	// CodeValidation is a rejected input, such as an amount that does not parse.
	CodeValidation Code = "VALIDATION"

	// CodeNotFound is a reference to a missing or foreign record.
	CodeNotFound Code = "NOT_FOUND"

	// CodeEncode is a CSV serialization failure.
	CodeEncode Code = "ENCODE"

	// CodeSink is an I/O or external sink failure during export.
	CodeSink Code = "SINK"

	// CodeConcurrentExport rejects a second export for a project that already
	// has one in flight.
	CodeConcurrentExport Code = "CONCURRENT_EXPORT"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrValidation       = &Error{Code: CodeValidation}
	ErrNotFound         = &Error{Code: CodeNotFound}
	ErrEncode           = &Error{Code: CodeEncode}
	ErrSink             = &Error{Code: CodeSink}
	ErrConcurrentExport = &Error{Code: CodeConcurrentExport}
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human readable message
	Metadata map[string]string // Additional context (field names, ids)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Validation reports a rejected value for field.
func Validation(field, value string, cause error) *Error {
	return &Error{
		Code:     CodeValidation,
		Message:  fmt.Sprintf("invalid %s %q", field, value),
		Metadata: map[string]string{"field": field, "value": value},
		Cause:    cause,
	}
}

// NotFound reports a missing record of the given kind.
func NotFound(kind, id string) *Error {
	return &Error{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("%s not found: %s", kind, id),
		Metadata: map[string]string{"kind": kind, "id": id},
	}
}

// ConcurrentExport reports that projectID already has an export in flight.
func ConcurrentExport(projectID, attemptID string) *Error {
	return &Error{
		Code:     CodeConcurrentExport,
		Message:  fmt.Sprintf("export already in progress for project %s", projectID),
		Metadata: map[string]string{"project_id": projectID, "attempt_id": attemptID},
	}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// ConnectCode maps domain codes to Connect status codes.
func (c Code) ConnectCode() connect.Code {
	switch c {
	case CodeValidation:
		return connect.CodeInvalidArgument
	case CodeNotFound:
		return connect.CodeNotFound
	case CodeConcurrentExport:
		return connect.CodeFailedPrecondition
	default:
		return connect.CodeInternal
	}
}

// ToConnect converts err into a *connect.Error carrying the mapped code.
func ToConnect(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}
	return connect.NewError(GetCode(err).ConnectCode(), err)
}
