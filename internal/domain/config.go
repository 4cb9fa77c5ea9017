package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultServerURL is used when no server address is configured.
const DefaultServerURL = "http://localhost:9000"

// Auth schemes accepted in Config.Auth.
const (
	AuthBasic  = "basic"
	AuthBearer = "bearer"
)

// Config holds everything needed to reach the server and write a report.
type Config struct {
	ServerURL      string        `yaml:"server_url"      json:"server_url"`
	Token          string        `yaml:"token"           json:"-"`
	Username       string        `yaml:"username"        json:"username,omitempty"`
	Password       string        `yaml:"password"        json:"-"`
	Auth           string        `yaml:"auth"            json:"auth"`
	Timeout        time.Duration `yaml:"timeout"         json:"timeout"`
	VerifySSL      *bool         `yaml:"verify_ssl"      json:"verify_ssl,omitempty"`
	MaxRetries     int           `yaml:"max_retries"     json:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"     json:"retry_delay"`
	PageSize       int           `yaml:"page_size"       json:"page_size"`
	MaxPages       int           `yaml:"max_pages"       json:"max_pages"`
	PageDelay      time.Duration `yaml:"page_delay"      json:"page_delay"`
	SnippetWorkers int           `yaml:"snippet_workers" json:"snippet_workers"`
	ContextLines   int           `yaml:"context_lines"   json:"context_lines"`
	Output         string        `yaml:"output"          json:"output,omitempty"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		ServerURL:      DefaultServerURL,
		Auth:           AuthBasic,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		PageSize:       500,
		MaxPages:       20,
		PageDelay:      500 * time.Millisecond,
		SnippetWorkers: 4,
		ContextLines:   3,
	}
}

// ShouldVerifySSL defaults to true when verify_ssl is unset.
func (c Config) ShouldVerifySSL() bool {
	return c.VerifySSL == nil || *c.VerifySSL
}

// HasCredentials reports whether a token or a username/password pair is set.
func (c Config) HasCredentials() bool {
	return c.Token != "" || (c.Username != "" && c.Password != "")
}

// Merge overlays the non-zero fields of override on c.
func (c Config) Merge(override Config) Config {
	if override.ServerURL != "" {
		c.ServerURL = override.ServerURL
	}
	if override.Token != "" {
		c.Token = override.Token
	}
	if override.Username != "" {
		c.Username = override.Username
	}
	if override.Password != "" {
		c.Password = override.Password
	}
	if override.Auth != "" {
		c.Auth = override.Auth
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.VerifySSL != nil {
		c.VerifySSL = override.VerifySSL
	}
	if override.MaxRetries != 0 {
		c.MaxRetries = override.MaxRetries
	}
	if override.RetryDelay != 0 {
		c.RetryDelay = override.RetryDelay
	}
	if override.PageSize != 0 {
		c.PageSize = override.PageSize
	}
	if override.MaxPages != 0 {
		c.MaxPages = override.MaxPages
	}
	if override.PageDelay != 0 {
		c.PageDelay = override.PageDelay
	}
	if override.SnippetWorkers != 0 {
		c.SnippetWorkers = override.SnippetWorkers
	}
	if override.ContextLines != 0 {
		c.ContextLines = override.ContextLines
	}
	if override.Output != "" {
		c.Output = override.Output
	}
	return c
}

// Validate checks value ranges. Credentials are checked by the caller
// because `init` and `version` run without them.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("server_url %q is not an absolute URL", c.ServerURL))
	}
	switch strings.ToLower(c.Auth) {
	case "", AuthBasic, AuthBearer:
	default:
		errs = append(errs, fmt.Errorf("auth %q must be %q or %q", c.Auth, AuthBasic, AuthBearer))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must not be negative"))
	}
	if c.RetryDelay < 0 || c.PageDelay < 0 {
		errs = append(errs, fmt.Errorf("delays must not be negative"))
	}
	if c.PageSize < 1 || c.PageSize > 500 {
		errs = append(errs, fmt.Errorf("page_size %d must be between 1 and 500", c.PageSize))
	}
	if c.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("max_pages must not be negative"))
	}
	if c.SnippetWorkers < 1 {
		errs = append(errs, fmt.Errorf("snippet_workers must be at least 1"))
	}
	if c.ContextLines < 1 {
		errs = append(errs, fmt.Errorf("context_lines must be at least 1"))
	}

	return errors.Join(errs...)
}
