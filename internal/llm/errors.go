package llm

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies provider failures.
type Kind string

const (
	KindMissingCredentials Kind = "missing_credentials"
	KindRateLimited        Kind = "rate_limited"
	KindTimeout            Kind = "timeout"
	KindHTTP               Kind = "http"
	KindEmptyResult        Kind = "empty_result"
	KindNetwork            Kind = "network"
)

// Error is the typed failure surfaced by the client, the coordinator and the
// generation layer.
type Error struct {
	Kind       Kind
	StatusCode int
	// RetryAfter is the provider's hint on a 429, zero when absent.
	RetryAfter time.Duration
	Message    string
	Err        error
}

var (
	ErrMissingCredentials = &Error{Kind: KindMissingCredentials}
	ErrRateLimited        = &Error{Kind: KindRateLimited}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrEmptyResult        = &Error{Kind: KindEmptyResult}
	ErrNetwork            = &Error{Kind: KindNetwork}
)

// Code returns the wire-level code: "http_503", "rate_limited", ...
func (e *Error) Code() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("http_%d", e.StatusCode)
	}
	return string(e.Kind)
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Code() + ": " + e.Message
	}
	if e.Err != nil {
		return e.Code() + ": " + e.Err.Error()
	}
	return e.Code()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind; a target with a StatusCode also has to match the status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.StatusCode == 0 || t.StatusCode == e.StatusCode
}

// HTTPStatus builds an error for a non-2xx provider status.
func HTTPStatus(status int, message string) *Error {
	return &Error{Kind: KindHTTP, StatusCode: status, Message: message}
}

// Code returns the taxonomy code of err, or "" when err is not a provider error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return ""
}

// KindOf returns the Kind of err, or "" when err is not a provider error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindTimeout, KindHTTP, KindNetwork:
		return true
	default:
		return false
	}
}
