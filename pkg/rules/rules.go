package rules

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/Sriram-PR/site-spider/pkg/models"
	"github.com/Sriram-PR/site-spider/pkg/parse"
	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// IgnoreRules suppresses recording of specific error kinds for specific URLs
// A nil *IgnoreRules enables every rule. Read-only once a crawl starts
type IgnoreRules struct {
	patterns map[models.ErrorKind]map[string]struct{}
}

// New returns an empty rule table
func New() *IgnoreRules {
	return &IgnoreRules{patterns: make(map[models.ErrorKind]map[string]struct{})}
}

// Add suppresses kind for target, which is compared against the URL's full string form or its path
// Absolute targets are stored in canonical form
func (r *IgnoreRules) Add(kind models.ErrorKind, target string) {
	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		target = parse.Canonical(u).String()
	}
	set, ok := r.patterns[kind]
	if !ok {
		set = make(map[string]struct{})
		r.patterns[kind] = set
	}
	set[target] = struct{}{}
}

// Len returns the total number of rules
func (r *IgnoreRules) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, set := range r.patterns {
		n += len(set)
	}
	return n
}

// IsRuleEnabled reports whether an anomaly of kind concerning u should be recorded
// Matching is exact: u.String() must equal a stored entry, or u's path must
// when u's host is one of hosts. Path entries never reach other sites
func (r *IgnoreRules) IsRuleEnabled(kind models.ErrorKind, u *url.URL, hosts []string) bool {
	if r == nil || u == nil {
		return true
	}
	set, ok := r.patterns[kind]
	if !ok || len(set) == 0 {
		return true
	}
	if _, hit := set[u.String()]; hit {
		return false
	}
	if u.Path != "" && parse.HostAllowed(hosts, u) {
		if _, hit := set[u.Path]; hit {
			return false
		}
	}
	return true
}

// Entries returns the rules as "<rule> <url>" lines, sorted
func (r *IgnoreRules) Entries() []string {
	if r == nil {
		return nil
	}
	var out []string
	for kind, set := range r.patterns {
		for target := range set {
			out = append(out, kind.String()+" "+target)
		}
	}
	sort.Strings(out)
	return out
}

// Parse reads an ignore file: one "<rule> <url>" pair per line
// Blank lines and lines starting with # are skipped. Any other malformed line is an error
func Parse(reader io.Reader) (*IgnoreRules, error) {
	rules := New()
	scanner := bufio.NewScanner(reader)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: ignore file line %d: expected \"<rule> <url>\", got %d fields", utils.ErrParsing, lineNum, len(fields))
		}
		kind, err := models.ParseErrorKind(fields[0])
		if err != nil || kind == models.FailedCrawl {
			return nil, fmt.Errorf("%w: ignore file line %d: invalid ignore rule %q", utils.ErrParsing, lineNum, fields[0])
		}
		rules.Add(kind, fields[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading ignore file: %w", utils.ErrFilesystem, err)
	}
	return rules, nil
}

// LoadFile opens and parses the ignore file at path
func LoadFile(path string) (*IgnoreRules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open ignore file: %w", utils.ErrFilesystem, err)
	}
	defer f.Close()

	rules, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}
