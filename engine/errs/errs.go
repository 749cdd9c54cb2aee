// Package errs defines the typed error kinds surfaced by the memory engine
// core, and the classification helpers used to decide whether a failure from
// an external dependency is worth retrying.
package errs

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind is the category of a core-surfaced error.
type Kind int

const (
	// InvalidInput is caller-side; propagated verbatim, never retried.
	InvalidInput Kind = iota
	// NotFound means an unknown memoryId or userId with no data.
	NotFound
	// Conflict means a duplicate id on insert.
	Conflict
	// Transient means an external dependency hiccup; retried internally.
	Transient
	// Dimension means an embedding shape violation; fatal for the record.
	Dimension
	// Unavailable means a build failed and no cached fallback is usable.
	Unavailable
	// Timeout means the caller's deadline expired.
	Timeout
)

// String returns the name of the error kind.
func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Transient:
		return "transient"
	case Dimension:
		return "dimension"
	case Unavailable:
		return "unavailable"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind so callers can branch on it
// with errors.As instead of string matching.
type Error struct {
	Original error
	Context  string
	Kind     Kind
}

// New creates a classified error with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Original: errors.New(msg)}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Original: fmt.Errorf(format, args...)}
}

// Wrap attaches a Kind to an existing error with additional context.
func Wrap(kind Kind, err error, context string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Original: err, Context: context}
}

func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Original)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Original)
}

// Unwrap allows errors.Is/errors.As to reach the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Original
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Unavailable when err is
// not a classified error (an unclassified failure from a dependency is
// treated as non-retryable and surfaced rather than silently swallowed).
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Unavailable
}

// IsRetryable reports whether an error from an external dependency is worth
// retrying under the Embedding Gateway's backoff policy. Only Transient
// errors retry; Dimension, Conflict, and InvalidInput are structural and
// fatal for the affected record.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == Transient
	}
	return classifyRaw(err) == Transient
}

// Classify inspects a raw error from an external dependency (no existing
// *Error wrapper) and assigns it a Kind by inspecting common network/timeout
// signatures, mirroring the transient/permanent split used elsewhere in this
// codebase for scheduling retries.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Kind: classifyRaw(err), Original: err}
}

func classifyRaw(err error) Kind {
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Timeout
		}
		return Transient
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"network is unreachable",
		"no such host",
		"temporary failure",
		"dial tcp",
		"eof",
		"connection lost",
		"too many requests",
		"rate limit",
		"503",
		"502",
		"500",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return Transient
		}
	}

	timeoutPatterns := []string{"timeout", "deadline exceeded", "i/o timeout", "operation timed out"}
	for _, p := range timeoutPatterns {
		if strings.Contains(msg, p) {
			return Timeout
		}
	}

	return Unavailable
}
