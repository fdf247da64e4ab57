package httpx_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mercuryfield/zenorm_go/internal/httpx"
)

func TestClientBasicAuthHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.URL, httpx.WithBasicAuth("agent@acme.test", "secret"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, Path: "/ping"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("agent@acme.test/token:secret"))
	if got != want {
		t.Fatalf("authorization header mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestClientOAuthHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.URL, httpx.WithOAuthToken("abc123"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, Path: "/ping"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if got != "Bearer abc123" {
		t.Fatalf("authorization header mismatch: got %q", got)
	}
}

func TestClientRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.URL, httpx.WithRetryPolicy(httpx.RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, Path: "/records"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if calls.Load() != 2 {
		t.Fatalf("want 2 attempts, got %d", calls.Load())
	}
}

func TestRetryAfterFloorsDelay(t *testing.T) {
	httpErr := &httpx.HTTPError{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"2"}},
	}
	if !httpErr.Retryable() {
		t.Fatal("429 must be retryable")
	}
	if got := httpErr.RetryAfter(); got != 2*time.Second {
		t.Fatalf("want 2s window, got %v", got)
	}

	noWindow := &httpx.HTTPError{StatusCode: http.StatusTooManyRequests}
	if got := noWindow.RetryAfter(); got != 0 {
		t.Fatalf("missing header must yield zero, got %v", got)
	}

	backoff := httpx.NewBackoff(time.Millisecond, 5*time.Millisecond, 0)
	if got := backoff.Delay(0, 2*time.Second); got != 2*time.Second {
		t.Fatalf("server window must floor the delay, got %v", got)
	}
	if got := backoff.Delay(10, 0); got != 5*time.Millisecond {
		t.Fatalf("delay must cap at MaxDelay, got %v", got)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.URL, httpx.WithRetryPolicy(httpx.RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, Path: "/missing"})

	var httpErr *httpx.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 HTTPError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("404 must not retry, got %d attempts", calls.Load())
	}
}

func TestClientBaseURLPathPreserved(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(srv.URL + "/api/v2")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, Path: "/custom_objects"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if gotPath != "/api/v2/custom_objects" {
		t.Fatalf("want base path preserved, got %q", gotPath)
	}
}
