// Package errs defines the coded errors shared by the remote client, the
// store and the CLI.
package errs

import (
	"errors"
	"fmt"
)

// Code classifies a failure.
type Code string

const (
	// Transport covers network failures, timeouts and cancellation.
	Transport Code = "transport"
	// Status means the remote answered with a non-2xx status.
	Status Code = "status"
	// Decode means the remote body was not the JSON we expect.
	Decode Code = "decode"
	// InvalidArgument is a local input problem; no remote call was made.
	InvalidArgument Code = "invalid_argument"
	// NotFound means the id is not present in local state.
	NotFound Code = "not_found"
	Internal Code = "internal"
)

// Error is a coded error.
type Error struct {
	Code       Code
	Message    string
	StatusCode int // set for Status errors
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Err: cause}
}

// HTTPStatus creates a Status error for a non-2xx response.
func HTTPStatus(status int, message string) error {
	return &Error{
		Code:       Status,
		Message:    fmt.Sprintf("%s: %d", message, status),
		StatusCode: status,
	}
}

// CodeOf returns the error code, defaulting to Internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	return Internal
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.StatusCode
	}
	return 0
}
