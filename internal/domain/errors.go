package domain

import (
	"fmt"
	"strings"
)

// HTTPError is a non-retryable 4xx/5xx answer from the server.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, body)
}

// RateLimitedError is an HTTP 429 answer. It is retried after RetryAfter seconds.
type RateLimitedError struct {
	URL        string
	RetryAfter int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by %s (retry after %ds)", e.URL, e.RetryAfter)
}

// RequestFailedError is returned once the retry budget of a request is spent.
type RequestFailedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("request to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *RequestFailedError) Unwrap() error { return e.Err }

// CollectionFailedError wraps the first failure of a required fetch.
type CollectionFailedError struct {
	Step string
	Err  error
}

func (e *CollectionFailedError) Error() string {
	return fmt.Sprintf("collecting %s: %v", e.Step, e.Err)
}

func (e *CollectionFailedError) Unwrap() error { return e.Err }

// SnippetUnavailableError records why a finding got the placeholder snippet.
// It never leaves the collector.
type SnippetUnavailableError struct {
	Component string
	Line      int
	Err       error
}

func (e *SnippetUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no source for %s:%d", e.Component, e.Line)
	}
	return fmt.Sprintf("no source for %s:%d: %v", e.Component, e.Line, e.Err)
}

func (e *SnippetUnavailableError) Unwrap() error { return e.Err }

// RuleFetchFailedError records a rule left out of the snapshot.
type RuleFetchFailedError struct {
	RuleKey string
	Err     error
}

func (e *RuleFetchFailedError) Error() string {
	return fmt.Sprintf("fetching rule %s: %v", e.RuleKey, e.Err)
}

func (e *RuleFetchFailedError) Unwrap() error { return e.Err }
