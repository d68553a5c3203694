// Package apperr provides coded errors for buildli. Every failure that
// crosses a package boundary carries a Code so callers and transports can
// classify it without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error
type Code string

const (
	CodeUnknown     Code = "unknown"
	CodeConfig      Code = "config"
	CodeIndexing    Code = "indexing"
	CodeQuery       Code = "query"
	CodeEmbedding   Code = "embedding"
	CodeVectorStore Code = "vector_store"
	CodeNetwork     Code = "network"
	CodeIO          Code = "io"
)

// Error is a coded error with optional cause and operation context
type Error struct {
	code      Code
	message   string
	operation string
	cause     error
}

// New creates a new Error with the given message
func New(message string) *Error {
	return &Error{
		code:    CodeUnknown,
		message: message,
	}
}

// Newf creates a new Error with a formatted message
func Newf(format string, args ...interface{}) *Error {
	return New(fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an additional message. Wrapping nil
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	code := CodeUnknown
	var appErr *Error
	if errors.As(err, &appErr) {
		code = appErr.code
	}
	return &Error{
		code:    code,
		message: message,
		cause:   err,
	}
}

// WithCode sets the error code
func (e *Error) WithCode(code Code) *Error {
	e.code = code
	return e
}

// WithOperation records the operation that failed
func (e *Error) WithOperation(op string) *Error {
	e.operation = op
	return e
}

// Code returns the error code
func (e *Error) Code() Code {
	return e.code
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.message
	if e.operation != "" {
		msg = e.operation + ": " + msg
	}
	if e.cause != nil {
		msg = msg + ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the wrapped cause
func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of err, or CodeUnknown for foreign errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.code
	}
	return CodeUnknown
}
