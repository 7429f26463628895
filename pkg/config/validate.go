package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/andybalholm/cascadia"

	"github.com/Sriram-PR/site-spider/pkg/parse"
	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// Admission limits: 0 means unbounded
	if c.MaxRequests < 0 {
		warnings = append(warnings, "max_requests cannot be negative, setting to 0 (unbounded)")
		c.MaxRequests = 0
	}
	if c.MaxRequestsPerHost < 0 {
		warnings = append(warnings, "max_requests_per_host cannot be negative, setting to 0 (unbounded)")
		c.MaxRequestsPerHost = 0
	}

	if c.MaxBodyBytes < 0 {
		warnings = append(warnings, fmt.Sprintf("max_body_bytes cannot be negative, defaulting to %d", DefaultMaxBodyBytes))
		c.MaxBodyBytes = DefaultMaxBodyBytes
	} else if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if c.StateDir == "" {
		c.StateDir = "./spider_state"
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	// InitialRetryDelay > MaxRetryDelay check
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	c.validateHTTPClientSettings()

	return warnings, nil // AppConfig validation never fails fatally
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = 10
	}
}

// Validate checks SiteConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
// Selectors are compiled here so an invalid one fails at load time, not mid-crawl.
func (c *SiteConfig) Validate() (warnings []string, err error) {
	// Required: RootURL
	if c.RootURL == "" {
		return nil, fmt.Errorf("%w: site has no root_url", utils.ErrConfigValidation)
	}
	root, err := url.Parse(c.RootURL)
	if err != nil || !root.IsAbs() || root.Host == "" {
		return nil, fmt.Errorf("%w: root_url %q must be an absolute http(s) URL", utils.ErrConfigValidation, c.RootURL)
	}
	if root.Scheme != "http" && root.Scheme != "https" {
		return nil, fmt.Errorf("%w: root_url %q has unsupported scheme %q", utils.ErrConfigValidation, c.RootURL, root.Scheme)
	}

	for _, h := range c.Hosts {
		if _, err := parse.HostOf(h); err != nil {
			return nil, fmt.Errorf("%w: invalid host %q: %v", utils.ErrConfigValidation, h, err)
		}
	}
	if len(c.Hosts) == 0 {
		warnings = append(warnings, fmt.Sprintf("hosts is empty, only %s will be expanded", root.Host))
	}

	// MaxDepth
	if c.MaxDepth != nil && *c.MaxDepth < UnlimitedDepth {
		warnings = append(warnings, fmt.Sprintf("max_depth %d is invalid, setting to -1 (unlimited)", *c.MaxDepth))
		unlimited := UnlimitedDepth
		c.MaxDepth = &unlimited
	}

	if c.ElementSelector == "" {
		c.ElementSelector = DefaultElementSelector
	}
	if c.TitleSelector == "" {
		c.TitleSelector = DefaultTitleSelector
	}
	if c.SkipClass == "" {
		c.SkipClass = DefaultSkipClass
	}

	if _, err := cascadia.Compile(c.ElementSelector); err != nil {
		return nil, fmt.Errorf("%w: invalid element_selector %q: %v", utils.ErrConfigValidation, c.ElementSelector, err)
	}
	if _, err := cascadia.Compile(c.TitleSelector); err != nil {
		return nil, fmt.Errorf("%w: invalid title_selector %q: %v", utils.ErrConfigValidation, c.TitleSelector, err)
	}

	return warnings, nil
}
