package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents an application-level error with a code and optional cause
type AppError struct {
	Code    string
	Message string
	Cause   error
	// Details carries structured diagnostics such as an upstream status code
	// or a subprocess stderr stream.
	Details map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a diagnostic key/value pair and returns the same error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError
func New(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err's chain contains an AppError with the given code.
func IsCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Error codes
const (
	ErrCodeConfiguration         = "CONFIGURATION_ERROR"
	ErrCodeUpstreamUnavailable   = "UPSTREAM_UNAVAILABLE"
	ErrCodeUpstreamError         = "UPSTREAM_ERROR"
	ErrCodeUpstreamTimeout       = "UPSTREAM_TIMEOUT"
	ErrCodeEmptyUpstreamResponse = "EMPTY_UPSTREAM_RESPONSE"
	ErrCodeMalformedToolCall     = "MALFORMED_TOOL_CALL"
	ErrCodeUnknownTool           = "UNKNOWN_TOOL"
	ErrCodeInvalidArguments      = "INVALID_ARGUMENTS"
	ErrCodeInputNotFound         = "INPUT_NOT_FOUND"
	ErrCodeExecutionFailed       = "EXECUTION_FAILED"
	ErrCodeMalformedOutput       = "MALFORMED_OUTPUT"
	ErrCodeExecutionTimeout      = "EXECUTION_TIMEOUT"
	ErrCodePersistence           = "PERSISTENCE_ERROR"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeInvalidInput          = "INVALID_INPUT"
)
