package parse

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// ErrInvalidURL is returned by Resolve when an attribute value cannot be parsed as a URL
var ErrInvalidURL = fmt.Errorf("%w: invalid URL", utils.ErrParsing)

// Resolve turns a raw attribute value into an absolute URL
// Absolute values are used as is, relative values are resolved against base
// The fragment is always cleared, so "page.html#top" and "page.html" resolve to the same URL,
// and "http://host" becomes "http://host/". The host is lower-cased and a default port is dropped.
// Query, trailing slash and escapes are left untouched
func Resolve(base *url.URL, raw string) (*url.URL, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, raw, err)
	}

	var resolved *url.URL
	if ref.IsAbs() {
		resolved = ref
	} else {
		if base == nil {
			return nil, fmt.Errorf("%w %q: relative URL without a base", ErrInvalidURL, raw)
		}
		resolved = base.ResolveReference(ref)
	}

	canonicalize(resolved)
	return resolved, nil
}

// Canonical returns a copy of u in the form used as the deduplication key:
// fragment removed, host lower-cased without its scheme's default port,
// and an empty path on a URL with a host written as "/"
func Canonical(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	canonicalize(&c)
	return &c
}

func canonicalize(u *url.URL) {
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = stripDefaultPort(u.Scheme, strings.ToLower(u.Host))
	if u.Host != "" && u.Opaque == "" && u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
}

func defaultPort(scheme string) string {
	switch strings.ToLower(scheme) {
	case "http", "ws":
		return "80"
	case "https", "wss":
		return "443"
	}
	return ""
}

// stripDefaultPort drops ":80" from http hosts and ":443" from https hosts
func stripDefaultPort(scheme, host string) string {
	port := defaultPort(scheme)
	if port == "" {
		return host
	}
	trimmed, ok := strings.CutSuffix(host, ":"+port)
	if !ok || trimmed == "" || strings.HasSuffix(trimmed, ":") {
		return host
	}
	// Bare IPv6 literals are always bracketed in a URL, so a remaining colon means no port was cut
	if strings.Contains(trimmed, ":") && !strings.HasSuffix(trimmed, "]") {
		return host
	}
	return trimmed
}

// MustResolve is Resolve for trusted inputs such as test fixtures; it panics on error
func MustResolve(base *url.URL, raw string) *url.URL {
	u, err := Resolve(base, raw)
	if err != nil {
		panic(err)
	}
	return u
}

// HostAllowed reports whether u has a host and that host (port included) is one of hosts
// A URL with no host, such as mailto:, is never allowed
// Entries naming the scheme's default port match URLs that omit it, and the reverse
func HostAllowed(hosts []string, u *url.URL) bool {
	if u == nil || u.Host == "" {
		return false
	}
	host := stripDefaultPort(u.Scheme, u.Host)
	for _, h := range hosts {
		if strings.EqualFold(stripDefaultPort(u.Scheme, h), host) {
			return true
		}
	}
	return false
}

// HostOf extracts host[:port] from an absolute URL, or accepts a bare host as given
// Used to build the host allow-list from configuration values
func HostOf(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty host")
	}
	if !strings.Contains(raw, "://") {
		if strings.ContainsAny(raw, "/?#") {
			return "", fmt.Errorf("%w: %q is neither a host nor an absolute URL", utils.ErrParsing, raw)
		}
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: parse host URL %q: %v", utils.ErrParsing, raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: URL %q has no host", utils.ErrParsing, raw)
	}
	return u.Host, nil
}
