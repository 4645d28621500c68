package domain

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors surfaced to views.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota
	ErrorMissingParameter
	ErrorConnection
	ErrorNotReady
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorMissingParameter:
		return "missing_parameter"
	case ErrorConnection:
		return "connection_error"
	case ErrorNotReady:
		return "not_ready"
	default:
		return "unknown"
	}
}

// Error is a categorized error. Message is what a view may show.
type Error struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Wrapped: err}
}

// ConnectionError wraps a rejected call to the real-time service.
// The rejection text is kept verbatim as the message.
func ConnectionError(err error) *Error {
	if err == nil {
		return nil
	}
	return WrapError(ErrorConnection, err.Error(), err)
}

var (
	ErrMissingParameter = NewError(ErrorMissingParameter, "missing parameter")
	ErrConnection       = NewError(ErrorConnection, "connection error")
	ErrNotReady         = NewError(ErrorNotReady, "connection not ready")

	ErrNicknameEmpty   = NewError(ErrorMissingParameter, "nickname empty")
	ErrNicknameTooLong = errors.New("nickname too long")
)

// Reason returns the human-readable part of err.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
