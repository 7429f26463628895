package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/site-spider/pkg/utils"
)

func intPtr(i int) *int {
	return &i
}

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{} // Zero value
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 0, cfg.MaxRequests, "0 means unbounded")
	assert.Equal(t, 0, cfg.MaxRequestsPerHost)
	assert.Equal(t, 0, cfg.MaxRetries, "retries are opt-in")
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes)
	assert.Equal(t, "./spider_state", cfg.StateDir)

	// Check HTTP client defaults
	assert.Equal(t, 45*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, 2, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, cfg.HTTPClientSettings.IdleConnTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTPClientSettings.TLSHandshakeTimeout)
	assert.Equal(t, 1*time.Second, cfg.HTTPClientSettings.ExpectContinueTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTPClientSettings.DialerTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.DialerKeepAlive)
	assert.Equal(t, 10, cfg.HTTPClientSettings.MaxRedirects)
}

func TestAppConfig_Validate_NegativeValues(t *testing.T) {
	cfg := AppConfig{
		MaxRequests:        -1,
		MaxRequestsPerHost: -5,
		MaxRetries:         -2,
		MaxBodyBytes:       -100,
	}
	warnings, err := cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.MaxRequests)
	assert.Equal(t, 0, cfg.MaxRequestsPerHost)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes)

	assert.True(t, containsWarning(warnings, "max_requests cannot be negative"))
	assert.True(t, containsWarning(warnings, "max_requests_per_host cannot be negative"))
	assert.True(t, containsWarning(warnings, "max_retries cannot be negative"))
	assert.True(t, containsWarning(warnings, "max_body_bytes cannot be negative"))
}

func TestAppConfig_Validate_RetryDefaults(t *testing.T) {
	cfg := AppConfig{MaxRetries: 2}
	_, err := cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, 1*time.Second, cfg.InitialRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxRetryDelay)
}

func TestAppConfig_Validate_RetryDelayInversion(t *testing.T) {
	cfg := AppConfig{
		MaxRetries:        3,
		InitialRetryDelay: 10 * time.Second,
		MaxRetryDelay:     5 * time.Second,
	}
	warnings, err := cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.InitialRetryDelay)
	assert.True(t, containsWarning(warnings, "initial_retry_delay"))
}

func TestSiteConfig_Validate_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		cfg    SiteConfig
		errMsg string
	}{
		{"MissingRootURL", SiteConfig{}, "root_url"},
		{"RelativeRootURL", SiteConfig{RootURL: "/docs"}, "absolute"},
		{"UnsupportedScheme", SiteConfig{RootURL: "ftp://example.com/"}, "scheme"},
		{"BadHost", SiteConfig{RootURL: "https://example.com/", Hosts: []string{"/path-only"}}, "invalid host"},
		{"BadElementSelector", SiteConfig{RootURL: "https://example.com/", ElementSelector: "a[href"}, "element_selector"},
		{"BadTitleSelector", SiteConfig{RootURL: "https://example.com/", TitleSelector: "title["}, "title_selector"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			_, err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrConfigValidation)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSiteConfig_Validate_Defaults(t *testing.T) {
	cfg := SiteConfig{RootURL: "https://example.com/"}
	warnings, err := cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, DefaultElementSelector, cfg.ElementSelector)
	assert.Equal(t, DefaultTitleSelector, cfg.TitleSelector)
	assert.Equal(t, DefaultSkipClass, cfg.SkipClass)
	assert.Equal(t, UnlimitedDepth, cfg.EffectiveMaxDepth())
	assert.True(t, containsWarning(warnings, "hosts is empty"))
}

func TestSiteConfig_Validate_InvalidMaxDepth(t *testing.T) {
	cfg := SiteConfig{RootURL: "https://example.com/", Hosts: []string{"example.com"}, MaxDepth: intPtr(-7)}
	warnings, err := cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, UnlimitedDepth, cfg.EffectiveMaxDepth())
	assert.True(t, containsWarning(warnings, "max_depth -7 is invalid"))
}

func TestSiteConfig_Validate_ZeroDepthKept(t *testing.T) {
	cfg := SiteConfig{RootURL: "https://example.com/", Hosts: []string{"example.com"}, MaxDepth: intPtr(0)}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 0, cfg.EffectiveMaxDepth())
}

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
