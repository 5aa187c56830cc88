// Package dberr defines the closed set of error kinds surfaced by cozoq.
//
// There are exactly three kinds:
//   - QueryError: the engine rejected or failed to execute a script.
//   - SessionError: an open/close/backup/restore/import/export or transport
//     operation failed, including any call made after the session closed.
//   - UsageError: the caller misused a builder or accessor. Usage errors
//     never reach the engine.
//
// Every kind renders with a stable prefix (PrefixQuery, PrefixSession,
// PrefixUsage) so logs and tests can classify failures by message alone.
package dberr

import (
	"errors"
	"fmt"
)

// Stable message prefixes, one per kind.
const (
	PrefixQuery   = "query failed: "
	PrefixSession = "session error: "
	PrefixUsage   = "usage error: "
)

// DefaultQueryMessage is used when a failure envelope carries no message.
const DefaultQueryMessage = "query failed"

// ErrSessionClosed is wrapped by the SessionError returned for any
// operation attempted after Close.
var ErrSessionClosed = errors.New("session is closed")

// QueryError reports a script the engine rejected or failed to run.
type QueryError struct {
	// Message is the engine's diagnostic text.
	Message string

	// Raw is the full response text, verbatim.
	Raw string
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return PrefixQuery + e.Message
}

// SessionError reports a failure of the session or of the infrastructure
// carrying scripts to the engine.
type SessionError struct {
	// Op names the session operation, e.g. "open", "backup", "run".
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause (optional).
	Err error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s%s: %s", PrefixSession, e.Op, msg)
	}
	return PrefixSession + msg
}

// Unwrap returns the underlying cause.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// UsageError reports a local programming error: malformed builder input or
// a lookup of a column the result does not have.
type UsageError struct {
	Message string
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	return PrefixUsage + e.Message
}

// NewQueryError creates a QueryError. An empty message is replaced by
// DefaultQueryMessage.
func NewQueryError(message, raw string) *QueryError {
	if message == "" {
		message = DefaultQueryMessage
	}
	return &QueryError{Message: message, Raw: raw}
}

// NewSessionError creates a SessionError for op wrapping err.
func NewSessionError(op, message string, err error) *SessionError {
	return &SessionError{Op: op, Message: message, Err: err}
}

// Closed returns the SessionError reported after a session has closed.
func Closed(op string) *SessionError {
	return &SessionError{Op: op, Err: ErrSessionClosed}
}

// Usagef creates a UsageError with a formatted message.
func Usagef(format string, args ...any) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// IsQueryError reports whether err is or wraps a QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// IsSessionError reports whether err is or wraps a SessionError.
func IsSessionError(err error) bool {
	var se *SessionError
	return errors.As(err, &se)
}

// IsUsageError reports whether err is or wraps a UsageError.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

// IsClosed reports whether err reports use of a closed session.
func IsClosed(err error) bool {
	return errors.Is(err, ErrSessionClosed)
}
