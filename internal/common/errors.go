package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
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
	ErrInternal     = errors.New("internal error")
	ErrValidation   = errors.New("validation failed")
)

// Pipeline and query error taxonomy.
var (
	// ErrAmountParse: per-field, the record is still emitted with a failure marker.
	ErrAmountParse = errors.New("amount parse failed")
	// ErrExtractionUnavailable: the oracle had no usable answer for a field.
	ErrExtractionUnavailable = errors.New("extraction unavailable")
	// ErrRender: the document could not be turned into an image; it is skipped.
	ErrRender = errors.New("render failed")
	// ErrWrite: a store write failed after retries; the chunk is dropped.
	ErrWrite = errors.New("store write failed")
	// ErrQuery: surfaced to the caller, never retried.
	ErrQuery = errors.New("query failed")
	// ErrConfiguration: fatal at startup.
	ErrConfiguration = errors.New("configuration error")
)

// Error codes carried by AppError.
const (
	CodeConfig     = "CONFIG_ERROR"
	CodeRender     = "RENDER_FAILURE"
	CodeWrite      = "WRITE_FAILURE"
	CodeExtraction = "EXTRACTION_UNAVAILABLE"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewConfigurationError(message string) *AppError {
	return NewAppError(CodeConfig, message, ErrConfiguration)
}

func NewRenderError(path string, cause error) *AppError {
	return NewAppError(CodeRender, path, errors.Join(ErrRender, cause))
}

func NewWriteError(collection string, cause error) *AppError {
	return NewAppError(CodeWrite, collection, errors.Join(ErrWrite, cause))
}

func NewExtractionUnavailable(field, reason string) *AppError {
	return NewAppError(CodeExtraction, field+": "+reason, ErrExtractionUnavailable)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}
