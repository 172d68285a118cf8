package engine

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetryTransportRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &http.Client{Transport: newRetryTransport(http.DefaultTransport, retryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	})}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestRetryTransportGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := &http.Client{Transport: newRetryTransport(http.DefaultTransport, retryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	})}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want the last failing response", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", got)
	}
}

func TestRetryTransportDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := &http.Client{Transport: newRetryTransport(http.DefaultTransport, defaultRetryConfig)}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	transport := newRetryTransport(nil, retryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
	})
	for attempt := 1; attempt <= 10; attempt++ {
		delay := transport.backoffDelay(attempt)
		if delay < 0 {
			t.Fatalf("attempt %d: negative delay %v", attempt, delay)
		}
		// Cap plus the 25% jitter margin.
		if delay > 1250*time.Millisecond {
			t.Fatalf("attempt %d: delay %v exceeds cap with jitter", attempt, delay)
		}
	}
}

func TestIsRetryableStatus(t *testing.T) {
	retryable := []int{429, 500, 502, 503, 504}
	for _, code := range retryable {
		if !isRetryableStatus(code) {
			t.Errorf("expected %d retryable", code)
		}
	}
	final := []int{200, 204, 301, 400, 403, 404, 410}
	for _, code := range final {
		if isRetryableStatus(code) {
			t.Errorf("expected %d final", code)
		}
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestTransientError(t *testing.T) {
	if !transientError(timeoutError{}) {
		t.Error("timeouts are transient")
	}
	if !transientError(&net.OpError{Op: "read", Err: errors.New("connection reset")}) {
		t.Error("connection-level failures are transient")
	}
	if transientError(errors.New("certificate rejected")) {
		t.Error("deterministic failures are not transient")
	}
}

func TestIdentityTransportPinsHeaders(t *testing.T) {
	var seen http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
	}))
	defer server.Close()

	client := &http.Client{Transport: &identityTransport{
		base:      http.DefaultTransport,
		userAgent: "test-agent/1.0",
	}}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got := seen.Get("User-Agent"); got != "test-agent/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := seen.Get("Accept-Language"); got == "" {
		t.Errorf("Accept-Language not pinned")
	}

	// An explicit header wins over the pinned identity.
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "caller/2.0")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if got := seen.Get("User-Agent"); got != "caller/2.0" {
		t.Errorf("explicit User-Agent overridden: %q", got)
	}
}
