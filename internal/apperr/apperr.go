// Package apperr defines the error codes returned in API response envelopes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/simplegpt/backend/internal/model/chat"
)

// Codes reported to clients.
const (
	CodeBadRequest       = "bad-request"
	CodeOpenAIAPI        = "openai-api"
	CodeOpenAINoResponse = "openai-no-response"
	CodeS3API            = "s3-api"
	CodeEnv              = "env"
)

// Error wraps an underlying cause with a client-safe code, message and HTTP status.
type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code && t.Message == e.Message
	}
	return false
}

// ServerError renders the wire representation.
func (e *Error) ServerError() *chat.ServerError {
	return &chat.ServerError{Code: e.Code, Message: e.Message}
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Status: e.Status, Err: err}
}

// Chat and image failures are reported in-band with status 200; upload
// failures use real status codes.
var (
	BadRequest = &Error{Code: CodeBadRequest, Message: "Bad request", Status: http.StatusOK}
	APIError   = &Error{Code: CodeOpenAIAPI, Message: "OpenAI: API error", Status: http.StatusOK}
	NoResponse = &Error{Code: CodeOpenAINoResponse, Message: "OpenAI: No response", Status: http.StatusOK}

	MissingFile         = &Error{Code: CodeBadRequest, Message: "No file attached", Status: http.StatusBadRequest}
	UploadNotConfigured = &Error{Code: CodeEnv, Message: "Uploads are not configured", Status: http.StatusInternalServerError}
	UploadFailed        = &Error{Code: CodeS3API, Message: "Upload failed", Status: http.StatusInternalServerError}
)

// As extracts an *Error from err, falling back to the supplied default.
func As(err error, fallback *Error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return fallback.Wrap(err)
}
