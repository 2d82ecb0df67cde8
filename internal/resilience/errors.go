// Package resilience provides retry with exponential backoff and the
// transient-failure classification the HTTP transport relies on.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// FailureClass categorizes a request failure for retry budgeting.
type FailureClass int

const (
	// FailurePermanent is not retried.
	FailurePermanent FailureClass = iota
	// FailureConnect is a failure to establish a connection.
	FailureConnect
	// FailureRead is a timeout or interruption while reading a response.
	FailureRead
	// FailureStatus is a retryable server-side HTTP status.
	FailureStatus
)

// TransientError wraps an error that is safe to retry, carrying the HTTP
// status code when the failure was a server-side status.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// Classify maps an error to its failure class.
func Classify(err error) FailureClass {
	if err == nil {
		return FailurePermanent
	}

	var te *TransientError
	if errors.As(err, &te) {
		if te.StatusCode != 0 {
			return FailureStatus
		}
		return FailureRead
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return FailureConnect
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureRead
	}

	msg := strings.ToLower(err.Error())
	connectPatterns := []string{
		"connection refused",
		"connection reset by peer",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
	}
	for _, p := range connectPatterns {
		if strings.Contains(msg, p) {
			return FailureConnect
		}
	}
	readPatterns := []string{
		"i/o timeout",
		"broken pipe",
		"unexpected eof",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range readPatterns {
		if strings.Contains(msg, p) {
			return FailureRead
		}
	}

	return FailurePermanent
}

// IsTransient reports whether err is worth retrying at all.
func IsTransient(err error) bool {
	return Classify(err) != FailurePermanent
}

// IsTransientHTTPStatus reports whether a server-side HTTP status is safe
// to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
