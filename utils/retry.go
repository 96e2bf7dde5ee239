package utils

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Retry defaults. The linear attempt×750ms ramp and the 5-attempt ceiling
// are part of the persistence contract, not tunables.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 750 * time.Millisecond
)

// RetryConfig holds the parameters for the retry strategy. Classify reports
// whether an error is transient; when it returns false the error propagates
// immediately without further attempts.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Classify    func(error) bool
	Logger      *zap.SugaredLogger
}

// Do executes fn, retrying transient failures with a linearly increasing
// delay (attempt × BaseDelay).
func (r *RetryConfig) Do(operationName string, fn func() error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	base := r.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if r.Classify != nil && !r.Classify(lastErr) {
			return lastErr
		}

		if attempt < attempts {
			delay := time.Duration(attempt) * base
			if r.Logger != nil {
				r.Logger.Warnf("[retry] %s failed (attempt %d/%d): %v — retrying in %v",
					operationName, attempt, attempts, lastErr, delay)
			}
			time.Sleep(delay)
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, lastErr)
}

// IsNetworkError reports whether err looks like a transient network-level
// failure: timeouts, resets, refused connections, truncated responses.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := err.Error()
	for _, hint := range []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"i/o timeout",
		"no such host",
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
