// Package httpclient provides the single shared HTTP client used by every
// outbound call in the system: source adapters, embedding providers, and
// health probes (§4.3). Three policies apply in order on every request:
// per-host rate limiting, classified retry with full-jitter backoff, and
// error classification onto the taxonomy in §7.
//
// Grounded on the teacher's per-IP server-side rate limiter
// (internal/server/ratelimit.go): the same golang.org/x/time/rate
// token-bucket-per-key plus background eviction loop, reused here per
// remote host on the client side instead of per client IP on the server
// side.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Kind is the error taxonomy shared across httpclient, embedder, rag, and
// ingestion (§7).
type Kind string

const (
	KindConfig         Kind = "config"
	KindAuth           Kind = "auth"
	KindTransient      Kind = "transient"
	KindInvalidRequest Kind = "invalid_request"
	KindNotFound       Kind = "not_found"
	KindConversion     Kind = "conversion"
	KindState          Kind = "state"
	KindCancelled      Kind = "cancelled"
	KindServerError    Kind = "server_error"
	KindRateLimited    Kind = "rate_limited_locally"
)

// Error is the classified error returned by Client.Do. It always carries
// enough context to explain what was retried and why it ultimately failed
// (§4.3's "all errors include host, method, final status, and attempt count").
type Error struct {
	Kind    Kind
	Host    string
	Method  string
	Status  int
	Attempt int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("httpclient: %s %s %s: attempt %d: status %d: %v", e.Kind, e.Method, e.Host, e.Attempt, e.Status, e.Err)
	}
	return fmt.Sprintf("httpclient: %s %s %s: attempt %d: status %d", e.Kind, e.Method, e.Host, e.Attempt, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Config configures the shared client. Zero values are replaced by the
// documented defaults in NewClient.
type Config struct {
	// RequestsPerMinute is the token bucket refill rate per remote host.
	RequestsPerMinute float64
	// Burst is the token bucket capacity per remote host.
	Burst int
	// MaxWait bounds how long a request waits for a rate-limit token before
	// failing with KindRateLimited. Defaults to the request's own timeout.
	MaxWait time.Duration
	// MaxAttempts is the maximum number of attempts per call (default 5).
	MaxAttempts int
	// BackoffCap bounds the computed exponential backoff delay (default 30s).
	BackoffCap time.Duration
	// BackoffBase is the base delay for the exponential backoff formula
	// (default 500ms).
	BackoffBase time.Duration
	// Timeout is the per-request wall-clock timeout (default 30s).
	Timeout time.Duration
	// IdempotentPOST marks request paths that may be retried as POST even
	// though POST is not idempotent by default.
	IdempotentPOST func(*http.Request) bool
	Logger         *slog.Logger
}

// Client wraps http.Client with rate limiting, retry, and classification.
type Client struct {
	cfg        Config
	inner      *http.Client
	log        *slog.Logger
	mu         sync.Mutex
	buckets    map[string]*hostLimiter
	stopEvict  chan struct{}
	evictOnce  sync.Once
}

type hostLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClient constructs a Client, applying documented defaults for any zero
// field in cfg, and starts the background bucket-eviction loop.
func NewClient(cfg Config) *Client {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 30 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = cfg.Timeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IdempotentPOST == nil {
		cfg.IdempotentPOST = func(*http.Request) bool { return false }
	}

	c := &Client{
		cfg:       cfg,
		inner:     &http.Client{Timeout: cfg.Timeout},
		log:       cfg.Logger,
		buckets:   make(map[string]*hostLimiter),
		stopEvict: make(chan struct{}),
	}
	go c.evictLoop()
	return c
}

// Close stops the background eviction goroutine.
func (c *Client) Close() {
	c.evictOnce.Do(func() { close(c.stopEvict) })
}

func (c *Client) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopEvict:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-5 * time.Minute)
			c.mu.Lock()
			for host, hl := range c.buckets {
				if hl.lastSeen.Before(cutoff) {
					delete(c.buckets, host)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	hl, ok := c.buckets[host]
	if !ok {
		hl = &hostLimiter{limiter: rate.NewLimiter(rate.Limit(c.cfg.RequestsPerMinute/60.0), c.cfg.Burst)}
		c.buckets[host] = hl
	}
	hl.lastSeen = time.Now()
	return hl.limiter
}

// bodyFunc builds a fresh request body for each attempt, since an
// io.Reader can only be consumed once. Callers with a non-empty body pass a
// bodyFunc; GET/HEAD pass nil.
type bodyFunc func() io.Reader

// Do issues req (rebuilt per attempt via newBody when retrying) applying
// rate limiting, retry with full-jitter backoff, and error classification.
// method and rawURL identify the request; headers are applied to every
// attempt.
func (c *Client) Do(ctx context.Context, method, rawURL string, headers http.Header, newBody bodyFunc) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Method: method, Err: err}
	}
	host := u.Host

	idempotent := method == http.MethodGet || method == http.MethodHead

	limiter := c.limiterFor(host)
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.MaxWait)
	defer cancel()
	if err := limiter.Wait(waitCtx); err != nil {
		return nil, &Error{Kind: KindRateLimited, Host: host, Method: method, Err: err}
	}

	var lastErr *Error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindCancelled, Host: host, Method: method, Attempt: attempt, Err: ctx.Err()}
		}

		var body io.Reader
		if newBody != nil {
			body = newBody()
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
		if err != nil {
			return nil, &Error{Kind: KindInvalidRequest, Host: host, Method: method, Attempt: attempt, Err: err}
		}
		req.Header = headers.Clone()

		resp, err := c.inner.Do(req)
		if err != nil {
			lastErr = &Error{Kind: KindTransient, Host: host, Method: method, Attempt: attempt, Err: err}
			if !(idempotent || c.cfg.IdempotentPOST(req)) {
				lastErr.Kind = KindServerError
				return nil, lastErr
			}
			c.sleepBeforeRetry(ctx, attempt, nil)
			continue
		}

		kind, retryable := classify(resp.StatusCode)
		if !retryable {
			if kind != "" {
				drainAndClose(resp)
				return nil, &Error{Kind: kind, Host: host, Method: method, Status: resp.StatusCode, Attempt: attempt}
			}
			return resp, nil
		}

		if !(idempotent || c.cfg.IdempotentPOST(req)) {
			drainAndClose(resp)
			return nil, &Error{Kind: KindServerError, Host: host, Method: method, Status: resp.StatusCode, Attempt: attempt}
		}

		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		lastErr = &Error{Kind: KindTransient, Host: host, Method: method, Status: resp.StatusCode, Attempt: attempt}
		drainAndClose(resp)

		if attempt == c.cfg.MaxAttempts {
			lastErr.Kind = KindServerError
			break
		}
		c.sleepBeforeRetry(ctx, attempt, retryAfter)
	}

	return nil, lastErr
}

// sleepBeforeRetry sleeps for the backoff duration, preferring an explicit
// Retry-After override over the computed full-jitter delay. It returns
// early if ctx is cancelled.
func (c *Client) sleepBeforeRetry(ctx context.Context, attempt int, retryAfter *time.Duration) {
	delay := fullJitterBackoff(attempt, c.cfg.BackoffBase, c.cfg.BackoffCap)
	if retryAfter != nil {
		delay = *retryAfter
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

// fullJitterBackoff computes delay = rand(0, min(cap, base*2^attempt)).
func fullJitterBackoff(attempt int, base, cap_ time.Duration) time.Duration {
	maxDelay := base * time.Duration(1<<uint(attempt))
	if maxDelay > cap_ || maxDelay <= 0 {
		maxDelay = cap_
	}
	if maxDelay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(maxDelay)))
}

// parseRetryAfter parses the Retry-After header, supporting only the
// delta-seconds form (the common case for rate-limited APIs).
func parseRetryAfter(v string) *time.Duration {
	if v == "" {
		return nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return nil
	}
	d := time.Duration(secs) * time.Second
	return &d
}

// classify maps an HTTP status code onto the §7 taxonomy. retryable=true
// means the status is in the retry set {429, 502, 503, 504}. kind is set
// (and retryable is false) for statuses that terminate the call
// immediately: 401/403 (Auth), 404 (NotFound), 408 (Transient), other 4xx
// (InvalidRequest), and any other non-2xx status (ServerError). A zero Kind with retryable=false means "success,
// caller should use the response as-is".
func classify(status int) (kind Kind, retryable bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == 429 || status == 502 || status == 503 || status == 504:
		return "", true
	case status == 401 || status == 403:
		return KindAuth, false
	case status == 404:
		return KindNotFound, false
	case status == 408:
		return KindTransient, false
	case status >= 400 && status < 500:
		return KindInvalidRequest, false
	default:
		return KindServerError, false
	}
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

// IsKind reports whether err (or any error it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// BytesBody returns a bodyFunc that replays the same byte slice on every
// retry attempt.
func BytesBody(b []byte) bodyFunc {
	return func() io.Reader { return bytes.NewReader(b) }
}
