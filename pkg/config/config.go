package config

import "time"

const (
	DefaultElementSelector = "a, link, img, script"
	DefaultTitleSelector   = "title"
	DefaultSkipClass       = "scrab-skip"
	DefaultUserAgent       = "site-spider/1.0"
	DefaultMaxBodyBytes    = 10 << 20
	UnlimitedDepth         = -1
)

// SiteConfig holds configuration specific to a single site check
type SiteConfig struct {
	RootURL         string   `yaml:"root_url"`
	Hosts           []string `yaml:"hosts,omitempty"`     // Hosts whose HTML pages are expanded; root host when empty
	MaxDepth        *int     `yaml:"max_depth,omitempty"` // nil = unlimited (-1)
	ElementSelector string   `yaml:"element_selector,omitempty"`
	TitleSelector   string   `yaml:"title_selector,omitempty"`
	SkipClass       string   `yaml:"skip_class,omitempty"`
	IgnoreFile      string   `yaml:"ignore_file,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	UserAgent          string                `yaml:"user_agent"`
	MaxRequests        int                   `yaml:"max_requests"`          // Global in-flight cap, 0 = unbounded
	MaxRequestsPerHost int                   `yaml:"max_requests_per_host"` // Per-host in-flight cap, 0 = unbounded
	MaxRetries         int                   `yaml:"max_retries,omitempty"` // Transport-error retries only
	InitialRetryDelay  time.Duration         `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay      time.Duration         `yaml:"max_retry_delay,omitempty"`
	MaxBodyBytes       int64                 `yaml:"max_body_bytes,omitempty"`
	StateDir           string                `yaml:"state_dir"` // Run history database directory
	HTTPClientSettings HTTPClientConfig      `yaml:"http_client_settings,omitempty"`
	Sites              map[string]SiteConfig `yaml:"sites"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	MaxRedirects          int           `yaml:"max_redirects,omitempty"`
}

// EffectiveMaxDepth resolves the site's depth limit, -1 meaning unlimited
func (c SiteConfig) EffectiveMaxDepth() int {
	if c.MaxDepth == nil {
		return UnlimitedDepth
	}
	return *c.MaxDepth
}

// DefaultAppConfig returns a validated config with no sites, used when no config file is given
func DefaultAppConfig() *AppConfig {
	cfg := &AppConfig{}
	_, _ = cfg.Validate()
	return cfg
}
