// Package retry runs collaborator calls with a per-attempt timeout and
// exponential backoff between attempts.
package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"

	"finqa-agent/internal/common/errors"
)

// Policy bounds a single collaborator call.
type Policy struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	CallTimeout time.Duration
	// OnRetry is invoked before sleeping for the next attempt.
	OnRetry func(operation string, attempt int, err error)
}

// DefaultPolicy allows two retries with 100ms, 200ms backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  2,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		CallTimeout: 15 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<(attempt-1))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// StatusError carries an HTTP status from a collaborator response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Do runs fn until it succeeds, returns a non-transient error, or the retry
// budget is spent. Cancellation of ctx stops immediately.
func Do[T any](ctx context.Context, p Policy, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if p.OnRetry != nil {
				p.OnRetry(operation, attempt, lastErr)
			}
			select {
			case <-time.After(p.Backoff(attempt)):
			case <-ctx.Done():
				return zero, fmt.Errorf("%s cancelled after %d attempts: %w", operation, attempt, ctx.Err())
			}
		}

		result, err := call(ctx, p.CallTimeout, fn)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s cancelled after %d attempts: %w", operation, attempt+1, ctx.Err())
		}
		if !IsTransient(err) {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%s failed after %d retries: %w", operation, p.MaxRetries, lastErr)
}

func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

// IsTransient reports whether err is worth another attempt: timeouts,
// network failures, HTTP 429 and 5xx, and retryable StandardErrors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if stderrors.As(err, &statusErr) {
		return statusErr.StatusCode == 429 || statusErr.StatusCode >= 500
	}

	// *url.Error satisfies net.Error, so only its transport causes count.
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return urlErr.Timeout() || transportFailure(urlErr.Err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	if stdErr, ok := errors.AsStandardError(err); ok {
		return stdErr.Retryable
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// TimedOut reports whether err ended on a deadline.
func TimedOut(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded)
}

func transportFailure(err error) bool {
	var opErr *net.OpError
	switch {
	case stderrors.As(err, &opErr):
		return true
	case stderrors.Is(err, io.EOF), stderrors.Is(err, io.ErrUnexpectedEOF):
		// connection closed before a response arrived
		return true
	case stderrors.Is(err, syscall.ECONNRESET), stderrors.Is(err, syscall.ECONNREFUSED):
		return true
	}
	return false
}
