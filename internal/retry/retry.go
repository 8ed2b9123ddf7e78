package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/amishk599/rankwatch/internal/model"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
)

// RequestSpec fully describes one outbound request. It is turned into a fresh
// *http.Request on every attempt.
type RequestSpec struct {
	Method string // defaults to GET
	URL    string
	Query  url.Values
	Header http.Header
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Limiter paces requests per host before each attempt.
type Limiter interface {
	Wait(ctx context.Context, host string) error
}

// Observer is told about every attempt. statusCode is zero when no response
// was received; retrying reports whether another attempt will follow.
type Observer interface {
	ObserveAttempt(host string, statusCode int, retrying bool)
}

// Fetcher issues HTTP requests, retrying retryable statuses with pure
// exponential backoff. It holds no mutable state and is safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	sleep       SleepFunc
	limiter     Limiter
	observer    Observer
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the delay before the second attempt; it doubles for each
// subsequent one.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.baseDelay = d
		}
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep SleepFunc) Option {
	return func(f *Fetcher) { f.sleep = sleep }
}

// WithLimiter paces every attempt through l.
func WithLimiter(l Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithObserver reports every attempt to o.
func WithObserver(o Observer) Option {
	return func(f *Fetcher) { f.observer = o }
}

// NewFetcher wraps client with retry logic. Defaults: 5 attempts, 1s base delay.
func NewFetcher(client *http.Client, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       sleepContext,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = http.DefaultClient
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Do performs the request described by spec. It returns as soon as an attempt
// gets a 2xx response. Retryable statuses are retried until the attempt budget
// is spent; any other failure returns immediately. Final failures are
// *model.FetchError.
func (f *Fetcher) Do(ctx context.Context, spec RequestSpec) (*Response, error) {
	target, err := buildURL(spec)
	if err != nil {
		return nil, &model.FetchError{URL: spec.URL, Attempts: 0, Err: err}
	}

	for attempt := 1; ; attempt++ {
		resp, err := f.attempt(ctx, spec, target)
		status := statusOf(resp, err)
		retrying := err != nil && IsRetryableStatus(status) && attempt < f.maxAttempts

		if f.observer != nil {
			f.observer.ObserveAttempt(target.Host, status, retrying)
		}
		if err == nil {
			return resp, nil
		}

		if !retrying {
			f.logger.Error("request failed",
				"url", target.Path,
				"attempt", attempt,
				"status", statusLabel(status),
				"error", err,
			)
			return nil, &model.FetchError{URL: target.String(), Attempts: attempt, StatusCode: status, Err: err}
		}

		delay := f.backoffDelay(attempt)
		f.logger.Warn("retrying after retryable status",
			"url", target.Path,
			"attempt", attempt,
			"max_attempts", f.maxAttempts,
			"status", status,
			"delay", delay,
		)

		if err := f.sleep(ctx, delay); err != nil {
			return nil, &model.FetchError{
				URL:        target.String(),
				Attempts:   attempt,
				StatusCode: status,
				Err:        fmt.Errorf("retry cancelled: %w", err),
			}
		}
	}
}

// attempt performs a single round trip and reads the whole body so the
// connection can be reused.
func (f *Fetcher) attempt(ctx context.Context, spec RequestSpec, target *url.URL) (*Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, target.Host); err != nil {
			return nil, err
		}
	}

	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range spec.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	httpResp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		// Keep the status so a truncated 503 is still retried.
		return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header},
			fmt.Errorf("read response body: %w", err)
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: body}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return resp, &model.HTTPError{StatusCode: httpResp.StatusCode, Body: body}
	}
	return resp, nil
}

// backoffDelay is baseDelay * 2^(attempt-1), without jitter.
func (f *Fetcher) backoffDelay(attempt int) time.Duration {
	delay := f.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// IsRetryableStatus reports whether a response status deserves another attempt.
func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusForbidden,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func buildURL(spec RequestSpec) (*url.URL, error) {
	u, err := url.Parse(spec.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", spec.URL, err)
	}
	if len(spec.Query) > 0 {
		q := u.Query()
		for k, vs := range spec.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func statusOf(resp *Response, err error) int {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	if resp != nil {
		return resp.StatusCode
	}
	return 0
}

func statusLabel(code int) any {
	if code == 0 {
		return "N/A"
	}
	return code
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
