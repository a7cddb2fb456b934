package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		status        int
		wantKind      Kind
		wantRetryable bool
	}{
		{200, "", false},
		{429, "", true},
		{503, "", true},
		{401, KindAuth, false},
		{403, KindAuth, false},
		{404, KindNotFound, false},
		{400, KindInvalidRequest, false},
		{500, KindServerError, false},
	}
	for _, c := range cases {
		kind, retryable := classify(c.status)
		if kind != c.wantKind || retryable != c.wantRetryable {
			t.Errorf("classify(%d) = (%v, %v), want (%v, %v)", c.status, kind, retryable, c.wantKind, c.wantRetryable)
		}
	}
}

func TestFullJitterBackoffBounded(t *testing.T) {
	for attempt := 1; attempt <= 6; attempt++ {
		d := fullJitterBackoff(attempt, 100*time.Millisecond, 2*time.Second)
		if d < 0 || d > 2*time.Second {
			t.Errorf("attempt %d: backoff %v out of bounds", attempt, d)
		}
	}
}

func TestDoRetriesOn503ThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{MaxAttempts: 5, BackoffBase: time.Millisecond, BackoffCap: 10 * time.Millisecond, RequestsPerMinute: 6000, Burst: 100})
	defer c.Close()

	resp, err := c.Do(context.Background(), http.MethodGet, srv.URL, http.Header{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoClassifiesAuthWithoutRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{MaxAttempts: 5, RequestsPerMinute: 6000, Burst: 100})
	defer c.Close()

	_, err := c.Do(context.Background(), http.MethodGet, srv.URL, http.Header{}, nil)
	if !IsKind(err, KindAuth) {
		t.Fatalf("expected KindAuth, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-retryable status, got %d", calls)
	}
}

func TestDoRespectsRateLimiterMaxWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{RequestsPerMinute: 60, Burst: 1, MaxWait: 5 * time.Millisecond})
	defer c.Close()

	// First call consumes the only token.
	resp, err := c.Do(context.Background(), http.MethodGet, srv.URL, http.Header{}, nil)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	resp.Body.Close()

	_, err = c.Do(context.Background(), http.MethodGet, srv.URL, http.Header{}, nil)
	if !IsKind(err, KindRateLimited) {
		t.Fatalf("expected second call to be rate-limited locally, got %v", err)
	}
}
