package sonar

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/reflectsonar/reflectsonar/internal/domain"
)

const userAgent = "reflectsonar"

// Client performs authenticated requests against the server with bounded
// retries. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	username   string
	password   string
	bearer     bool
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger
	sleep      SleepFunc
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for retries and request tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// NewClient builds a client from cfg. The token takes precedence over a
// username/password pair.
func NewClient(cfg domain.Config, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", cfg.ServerURL)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.ShouldVerifySSL() {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --insecure
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		token:      cfg.Token,
		username:   cfg.Username,
		password:   cfg.Password,
		bearer:     strings.EqualFold(cfg.Auth, domain.AuthBearer),
		maxRetries: max(cfg.MaxRetries, 0),
		retryDelay: cfg.RetryDelay,
		logger:     zerolog.Nop(),
		sleep:      Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get issues a GET request and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	return c.Request(ctx, http.MethodGet, endpoint, params, nil)
}

// Post issues a POST request with body encoded as JSON.
func (c *Client) Post(ctx context.Context, endpoint string, params url.Values, body any) ([]byte, error) {
	return c.Request(ctx, http.MethodPost, endpoint, params, body)
}

// GetJSON issues a GET request and decodes the answer into v.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, v any) error {
	body, err := c.Get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrapf(err, "decoding response of %s", endpoint)
	}
	return nil
}

// Request sends one logical request, retrying network failures and 429
// answers up to maxRetries times. Other 4xx/5xx answers fail immediately
// with *domain.HTTPError. An empty body is returned as "{}".
func (c *Client) Request(ctx context.Context, method, endpoint string, params url.Values, body any) ([]byte, error) {
	target := c.resolve(endpoint, params)

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
	}

	attempts := c.maxRetries + 1
	for attempt := 1; ; attempt++ {
		resp, err := c.do(ctx, method, target, payload)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if attempt >= attempts {
				return nil, &domain.RequestFailedError{URL: target, Attempts: attempt, Err: err}
			}
			c.logger.Warn().Err(err).Str("url", target).
				Msgf("request failed, retrying (%d/%d)", attempt, c.maxRetries)
			if err := c.sleep(ctx, c.retryDelay); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := c.retryAfter(resp.Header.Get("Retry-After"))
			drain(resp)
			limited := &domain.RateLimitedError{URL: target, RetryAfter: int(wait / time.Second)}
			if attempt >= attempts {
				return nil, &domain.RequestFailedError{URL: target, Attempts: attempt, Err: limited}
			}
			c.logger.Warn().Str("url", target).Msgf("rate limit exceeded, retrying after %s", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &domain.RequestFailedError{URL: target, Attempts: attempt, Err: err}
		}
		c.logger.Trace().Str("url", target).Int("status", resp.StatusCode).Int("bytes", len(data)).Msg("RECEIVED FROM REMOTE")

		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &domain.HTTPError{URL: target, StatusCode: resp.StatusCode, Body: string(data)}
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return []byte("{}"), nil
		}
		return data, nil
	}
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	c.logger.Trace().Str("method", method).Str("url", target).Msg("SEND TO REMOTE")
	return c.httpClient.Do(req)
}

func (c *Client) authorize(req *http.Request) {
	switch {
	case c.token != "" && c.bearer:
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.token != "":
		req.SetBasicAuth(c.token, "")
	case c.username != "" && c.password != "":
		req.SetBasicAuth(c.username, c.password)
	}
}

func (c *Client) resolve(endpoint string, params url.Values) string {
	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	return target
}

// retryAfter reads a Retry-After header in seconds, falling back to the
// configured retry delay.
func (c *Client) retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return c.retryDelay
	}
	return time.Duration(secs) * time.Second
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// Sleep waits for d, returning early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
