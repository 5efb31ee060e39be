package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPCheckerMatchingStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL, http.StatusOK)
	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("expected healthy, got: %s", result.Message)
	}
}

func TestHTTPCheckerUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL, http.StatusOK)
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Error("expected unhealthy for 503")
	}
	if result.Message == "" {
		t.Error("expected a message explaining the mismatch")
	}
}

func TestHTTPCheckerConnectionRefused(t *testing.T) {
	checker := NewHTTPChecker("http://127.0.0.1:1", http.StatusOK).WithTimeout(time.Second)
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Error("expected unhealthy when nothing is listening")
	}
}

func TestHTTPCheckerContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := NewHTTPChecker(server.URL, http.StatusOK).Check(ctx)
	if result.Healthy {
		t.Error("expected unhealthy on cancelled context")
	}
}
