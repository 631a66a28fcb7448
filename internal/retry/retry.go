package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Class partitions errors into those worth another attempt and those that
// will keep failing no matter how often they are retried.
type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
)

type classifiedError struct {
	err   error
	class Class
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Transient marks err as retryable regardless of its message.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTransient}
}

// Terminal marks err as not worth retrying.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTerminal}
}

// Classify decides whether err is transient. Explicit markers win, then
// context state, then network errors, then message heuristics. Unknown
// errors default to terminal so a broken input cannot loop forever.
func Classify(err error) Class {
	if err == nil {
		return ClassTerminal
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return marked.class
	}

	if errors.Is(err, context.Canceled) {
		return ClassTerminal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, terminalTokens) {
		return ClassTerminal
	}
	if containsAny(lower, transientTokens) {
		return ClassTransient
	}
	return ClassTerminal
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return Classify(err) == ClassTransient
}

// StatusTransient reports whether an HTTP status code indicates a condition
// that may clear on retry.
func StatusTransient(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var transientTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"too many requests",
	"rate limit",
	"http status 429",
	"http status 502",
	"http status 503",
	"http status 504",
	"server closed idle connection",
	"eof",
}

var terminalTokens = []string{
	"invalid argument",
	"not found",
	"parse error",
	"unauthorized",
	"forbidden",
}
