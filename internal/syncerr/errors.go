// Package syncerr classifies the failures the connector can hit so the retry
// policy and the loaders can decide between retrying, pausing, skipping a unit
// and aborting the run.
package syncerr

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Codes are strings so they read well in
// logs and in the run history table.
type Code string

const (
	// CodeNotFound: the remote resource for one unit does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeUnauthorized: credentials were rejected or could not be built.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeInvalidInput: the API rejected the request itself.
	CodeInvalidInput Code = "INVALID_INPUT"

	// CodeConflict: the resource a create call targets already exists.
	CodeConflict Code = "ALREADY_EXISTS"

	// CodeInvalidConfig: the configuration cannot produce a working run.
	CodeInvalidConfig Code = "INVALID_CONFIGURATION"

	// CodeDatabase: a store operation failed.
	CodeDatabase Code = "DATABASE_ERROR"

	// CodeNetwork: the request never produced a response.
	CodeNetwork Code = "NETWORK_ERROR"

	// CodeTimeout: the request exceeded its deadline.
	CodeTimeout Code = "TIMEOUT"

	// CodeRateLimit: the API asked us to slow down.
	CodeRateLimit Code = "RATE_LIMIT_EXCEEDED"

	// CodeUnavailable: the API answered with a 5xx status.
	CodeUnavailable Code = "SERVICE_UNAVAILABLE"

	// CodeUnknown: anything that was not classified.
	CodeUnknown Code = "UNKNOWN"
)

// Error carries a Code plus enough context to diagnose a remote failure.
type Error struct {
	Code   Code
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error for op wrapping err.
func New(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Newf builds an *Error with a formatted cause.
func Newf(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsTransient reports whether err is worth retrying with backoff.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case CodeNetwork, CodeTimeout, CodeUnavailable:
		return true
	}
	return false
}

// IsThrottled reports whether the API signalled a rate limit.
func IsThrottled(err error) bool {
	return CodeOf(err) == CodeRateLimit
}

// IsNotFound reports whether err means "this unit has no data".
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsConflict reports whether a create call found the resource already there.
func IsConflict(err error) bool {
	return CodeOf(err) == CodeConflict
}

// BodyOf returns the response body captured on the first *Error in the chain.
func BodyOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Body
	}
	return ""
}
