package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// StatusError is a non-2xx response from an external service.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s error %d: %s", e.Service, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s error %d", e.Service, e.StatusCode)
}

// IsRateLimit returns true when the error is an HTTP 429 or a breaker rejection.
func IsRateLimit(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return true
	}
	var se StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsRetryable classifies transient failures: connection errors, timeouts,
// 429 and 5xx. Other 4xx and caller cancellation are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var se StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

// CheckStatus returns a StatusError for any non-2xx response.
func CheckStatus(service string, resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return StatusError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
}
