package config

import (
	"fmt"
	"net/url"

	"github.com/andybalholm/cascadia"

	"github.com/Sriram-PR/site-spider/pkg/parse"
	"github.com/Sriram-PR/site-spider/pkg/rules"
	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// SpiderOptions is the compiled, immutable configuration of one crawl
type SpiderOptions struct {
	MaxDepth        int               // -1 unlimited, 0 root only
	ElementSelector cascadia.Selector // Elements scanned for references
	TitleSelector   cascadia.Selector
	SkipClass       string   // Elements carrying this class are ignored entirely
	Hosts           []string // host[:port] allow-list for expansion
	IgnoreRules     *rules.IgnoreRules
	MaxBodyBytes    int64
}

// DefaultSpiderOptions returns options with the default selectors, unlimited depth and no hosts
func DefaultSpiderOptions() *SpiderOptions {
	return &SpiderOptions{
		MaxDepth:        UnlimitedDepth,
		ElementSelector: cascadia.MustCompile(DefaultElementSelector),
		TitleSelector:   cascadia.MustCompile(DefaultTitleSelector),
		SkipClass:       DefaultSkipClass,
		MaxBodyBytes:    DefaultMaxBodyBytes,
	}
}

// NewSpiderOptions compiles a validated site config into crawl options
// Loads the ignore file and builds the host allow-list; the root host is used when hosts is empty
func NewSpiderOptions(site SiteConfig, app *AppConfig) (*SpiderOptions, error) {
	elementSel, err := cascadia.Compile(orDefault(site.ElementSelector, DefaultElementSelector))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid element_selector: %v", utils.ErrConfigValidation, err)
	}
	titleSel, err := cascadia.Compile(orDefault(site.TitleSelector, DefaultTitleSelector))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid title_selector: %v", utils.ErrConfigValidation, err)
	}

	opts := &SpiderOptions{
		MaxDepth:        site.EffectiveMaxDepth(),
		ElementSelector: elementSel,
		TitleSelector:   titleSel,
		SkipClass:       orDefault(site.SkipClass, DefaultSkipClass),
		MaxBodyBytes:    DefaultMaxBodyBytes,
	}
	if app != nil && app.MaxBodyBytes > 0 {
		opts.MaxBodyBytes = app.MaxBodyBytes
	}

	for _, h := range site.Hosts {
		host, err := parse.HostOf(h)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", utils.ErrConfigValidation, err)
		}
		opts.Hosts = append(opts.Hosts, host)
	}
	if len(opts.Hosts) == 0 && site.RootURL != "" {
		root, err := url.Parse(site.RootURL)
		if err == nil && root.Host != "" {
			opts.Hosts = []string{root.Host}
		}
	}

	if site.IgnoreFile != "" {
		ignore, err := rules.LoadFile(site.IgnoreFile)
		if err != nil {
			return nil, err
		}
		opts.IgnoreRules = ignore
	}

	return opts, nil
}

// WithHosts returns a copy of o with extra hosts appended
func (o *SpiderOptions) WithHosts(hosts ...string) *SpiderOptions {
	c := *o
	c.Hosts = append(append([]string(nil), o.Hosts...), hosts...)
	return &c
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
