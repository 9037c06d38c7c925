package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

// Default retry configuration values.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 2 * time.Second
	DefaultMaxDelay   = 30 * time.Second
	DefaultRatePause  = 500 * time.Millisecond
)

// StatusError reports a non-2xx HTTP response from an upstream source.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// IsTransient reports whether err is worth retrying: timeouts, connection
// errors, HTTP 5xx and 429. Any other 4xx is permanent for the current call.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	return false
}

// Policy implements the fetch-retry discipline shared by all adapters:
// a fixed rate-limit pause before every outbound request, and exponential
// backoff (base × 2^attempt, capped) on transient failures. Permanent
// failures are returned immediately.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	limiter *rate.Limiter
}

// NewPolicy creates a retry policy. Zero arguments take the defaults;
// ratePause is the minimum spacing between outbound requests.
func NewPolicy(maxRetries int, baseDelay, maxDelay, ratePause time.Duration) *Policy {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if ratePause <= 0 {
		ratePause = DefaultRatePause
	}
	return &Policy{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		limiter:    rate.NewLimiter(rate.Every(ratePause), 1),
	}
}

// DefaultPolicy returns a policy with all defaults.
func DefaultPolicy() *Policy {
	return NewPolicy(0, 0, 0, 0)
}

// Do runs fn under the policy. fn is attempted up to MaxRetries+1 times;
// only transient errors are retried. Each attempt waits on the rate
// limiter first so upstream throttles are never tripped by retries.
func (p *Policy) Do(ctx context.Context, fn func() error) error {
	delay := p.BaseDelay
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
