package domain

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error kind. The set is closed: callers
// switch on codes rather than parsing messages.
type Code string

const (
	CodeMissingCredential Code = "MISSING_FAL_KEY"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeModelNotFound     Code = "MODEL_NOT_FOUND"
	CodeAdminScope        Code = "ADMIN_KEY_REQUIRED"
	CodeQueueStartTimeout Code = "QUEUE_START_TIMEOUT"
	CodeAPIError          Code = "FAL_API_ERROR"
	CodeInvalidResponse   Code = "INVALID_RESPONSE"
	CodeStreamUnavailable Code = "SSE_UNAVAILABLE"
	CodeJobFailed         Code = "JOB_FAILED"
	CodeJobTimeout        Code = "JOB_TIMEOUT"
	CodeNetworkError      Code = "NETWORK_ERROR"
	CodeCDNExpired        Code = "CDN_EXPIRED"
	CodeDownloadFailed    Code = "DOWNLOAD_FAILED"
	CodePathTraversal     Code = "PATH_TRAVERSAL_BLOCKED"
	CodeAmbiguousCursor   Code = "AMBIGUOUS_PAGINATION_CURSOR"
	CodeInvalidModelID    Code = "INVALID_MODEL_ID"
	CodePromptTooLong     Code = "PROMPT_TOO_LONG"
	CodeValidation        Code = "VALIDATION_ERROR"
)

// ToolError is the structured error surfaced to the tool boundary. It always
// carries a code from the closed taxonomy plus a human-readable message.
type ToolError struct {
	Code    Code
	Message string
	cause   error
}

func NewToolError(code Code, message string) *ToolError {
	return &ToolError{Code: code, Message: message}
}

// Errf builds a ToolError with a formatted message.
func Errf(code Code, format string, args ...any) *ToolError {
	return &ToolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches an underlying cause while keeping the structured code.
func WrapError(code Code, message string, cause error) *ToolError {
	return &ToolError{Code: code, Message: message, cause: cause}
}

func (e *ToolError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *ToolError) Unwrap() error {
	return e.cause
}

// CodeOf extracts the taxonomy code from err, or "" when err is not a
// ToolError anywhere in its chain.
func CodeOf(err error) Code {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
