package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPChecker probes an HTTP endpoint and compares the status code against
// an exact expectation
type HTTPChecker struct {
	// URL is the full HTTP URL to probe (e.g. "http://127.0.0.1:30080/")
	URL string

	// ExpectedStatus is the status code that counts as healthy
	ExpectedStatus int

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewHTTPChecker creates a probe for url expecting expectedStatus
func NewHTTPChecker(url string, expectedStatus int) *HTTPChecker {
	return &HTTPChecker{
		URL:            url,
		ExpectedStatus: expectedStatus,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Check performs one probe attempt
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("failed to create request: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("request failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode == h.ExpectedStatus
	message := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if !healthy {
		message = fmt.Sprintf("%s (expected %d)", message, h.ExpectedStatus)
	}

	return Result{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// WithTimeout sets the HTTP client timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}
