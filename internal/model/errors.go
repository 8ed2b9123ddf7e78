package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrJobNotFound is returned by a JobStore when no record has the given id.
	ErrJobNotFound = errors.New("job not found")
	// ErrNormalization marks a title normalizer failure; it is fatal for a run.
	ErrNormalization = errors.New("title normalization failed")
)

// HTTPError wraps a non-2xx HTTP response so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	if body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, body)
}

// FetchError is returned when a request finally fails, either because its
// retry budget ran out or because the failure was not retryable.
// StatusCode is zero when no response was received.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	status := "N/A"
	if e.StatusCode != 0 {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	return fmt.Sprintf("request %s failed after %d attempt(s) (status %s): %v", e.URL, e.Attempts, status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
