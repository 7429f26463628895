package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/site-spider/pkg/models"
	"github.com/Sriram-PR/site-spider/pkg/report"
	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// runCmd executes the root command with args and returns what it printed
func runCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--loglevel", "error"))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// testSite serves path -> HTML; unknown paths are 404
func testSite(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func goodSite(t *testing.T) *httptest.Server {
	return testSite(t, map[string]string{
		"/":      `<html><head><title>Home</title></head><body><a href="/about">about</a></body></html>`,
		"/about": `<html><head><title>About</title></head><body><a href="/">home</a></body></html>`,
	})
}

func brokenSite(t *testing.T) *httptest.Server {
	return testSite(t, map[string]string{
		"/": `<html><head><title>Home</title></head><body><a href="/gone">gone</a></body></html>`,
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"check", "watch", "validate", "history", "mcp-server", "version"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("loglevel"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestCheck_URL(t *testing.T) {
	site := goodSite(t)
	stdout, _, err := runCmd(t, "check", "--url", site.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, stdout, "OK: "+site.URL+"/, 2 pages, 2 links, 0 errors")
}

func TestCheck_URL_Failed(t *testing.T) {
	site := brokenSite(t)
	stdout, _, err := runCmd(t, "check", "--url", site.URL+"/")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrFailedCrawl)
	assert.Contains(t, stdout, "HTTPError: HTTP 404 returned for "+site.URL+"/gone")
	assert.Contains(t, stdout, "FAILED: "+site.URL+"/")
}

func TestCheck_JSONFormat(t *testing.T) {
	site := brokenSite(t)
	stdout, _, err := runCmd(t, "check", "--url", site.URL+"/", "--format", "json")
	require.ErrorIs(t, err, models.ErrFailedCrawl)

	var summary report.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.False(t, summary.Success)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, map[string]int{"HTTPError": 1}, summary.ErrorCounts)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, models.HTTPError, summary.Errors[0].Kind)
	assert.Equal(t, 404, summary.Errors[0].HTTPStatus)
}

func TestCheck_DepthAndIgnoreFile(t *testing.T) {
	site := brokenSite(t)

	t.Run("depth 0 does not fetch the broken link", func(t *testing.T) {
		_, _, err := runCmd(t, "check", "--url", site.URL+"/", "--depth", "0")
		assert.NoError(t, err)
	})

	t.Run("ignore file suppresses the 404", func(t *testing.T) {
		ignore := filepath.Join(t.TempDir(), "ignore.txt")
		require.NoError(t, os.WriteFile(ignore, []byte("# known\nHTTPError /gone\n"), 0o644))
		stdout, _, err := runCmd(t, "check", "--url", site.URL+"/", "--ignore-file", ignore)
		require.NoError(t, err)
		assert.NotContains(t, stdout, "HTTPError")
	})

	t.Run("missing ignore file", func(t *testing.T) {
		_, _, err := runCmd(t, "check", "--url", site.URL+"/", "--ignore-file", filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrFailedCrawl)
	})
}

func TestCheck_DotDir(t *testing.T) {
	site := goodSite(t)
	dir := t.TempDir()
	_, _, err := runCmd(t, "check", "--url", site.URL+"/", "--dot-dir", dir)
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "*.dot"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	host := strings.TrimPrefix(site.URL, "http://")
	assert.Equal(t, utils.SanitizeFilename(host)+".dot", filepath.Base(files[0]))

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "digraph {"))
	assert.Contains(t, string(data), "color=green")
}

func TestCheck_FlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no target", []string{"check"}, "at least one of the flags"},
		{"url and site", []string{"check", "--url", "https://example.com/", "--site", "docs"}, "none of the others"},
		{"bad format", []string{"check", "--url", "https://example.com/", "--format", "xml"}, "unknown report format"},
		{"bad depth", []string{"check", "--url", "https://example.com/", "--depth", "-3"}, "--depth"},
		{"relative url", []string{"check", "--url", "/docs"}, "absolute"},
		{"site without config", []string{"check", "--site", "docs"}, "no sites configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCmd(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheck_ConfiguredSitesWithHistory(t *testing.T) {
	good := goodSite(t)
	bad := brokenSite(t)
	stateDir := t.TempDir()
	cfgPath := writeConfig(t, `
state_dir: "`+stateDir+`"
sites:
  good:
    root_url: "`+good.URL+`/"
  bad:
    root_url: "`+bad.URL+`/"
`)

	stdout, _, err := runCmd(t, "check", "-c", cfgPath, "--all-sites", "--history")
	require.ErrorIs(t, err, models.ErrFailedCrawl)
	assert.Contains(t, err.Error(), "1 of 2 checks failed")
	assert.Contains(t, stdout, "OK: good (")
	assert.Contains(t, stdout, "FAILED: bad (")

	stdout, _, err = runCmd(t, "history", "-c", cfgPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Len(t, lines, 2)

	stdout, _, err = runCmd(t, "history", "-c", cfgPath, "--site", "bad", "--format", "json")
	require.NoError(t, err)
	var runs []models.RunRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Success)
	assert.Equal(t, map[string]int{"HTTPError": 1}, runs[0].ErrorCounts)

	stdout, _, err = runCmd(t, "history", "-c", cfgPath, runs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Run "+runs[0].ID+": FAILED")
	assert.Contains(t, stdout, "HTTP 404 returned for "+bad.URL+"/gone")

	_, _, err = runCmd(t, "history", "-c", cfgPath, "no-such-run")
	require.Error(t, err)
}

func TestCheck_SitesSubset(t *testing.T) {
	good := goodSite(t)
	cfgPath := writeConfig(t, `
sites:
  good:
    root_url: "`+good.URL+`/"
  other:
    root_url: "http://127.0.0.1:1/"
`)

	stdout, _, err := runCmd(t, "check", "-c", cfgPath, "--sites", "good")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "other")

	_, _, err = runCmd(t, "check", "-c", cfgPath, "--site", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfgPath := writeConfig(t, `
sites:
  docs:
    root_url: "https://docs.example.com/"
    hosts: ["docs.example.com"]
  blog:
    root_url: "https://blog.example.com/"
`)
		stdout, _, err := runCmd(t, "validate", "-c", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, stdout, "OK: [blog] https://blog.example.com/")
		assert.Contains(t, stdout, "OK: [docs] https://docs.example.com/")
		assert.Contains(t, stdout, "WARN: [blog] hosts is empty")
		assert.Contains(t, stdout, "Configuration valid")
	})

	t.Run("invalid selector", func(t *testing.T) {
		cfgPath := writeConfig(t, `
sites:
  docs:
    root_url: "https://docs.example.com/"
    element_selector: "a["
`)
		stdout, _, err := runCmd(t, "validate", "-c", cfgPath)
		require.Error(t, err)
		assert.Contains(t, stdout, "ERROR: [docs]")
	})

	t.Run("missing ignore file", func(t *testing.T) {
		cfgPath := writeConfig(t, `
sites:
  docs:
    root_url: "https://docs.example.com/"
    ignore_file: "/nonexistent/ignore.txt"
`)
		_, _, err := runCmd(t, "validate", "-c", cfgPath, "--site", "docs")
		require.Error(t, err)
	})

	t.Run("no config", func(t *testing.T) {
		_, _, err := runCmd(t, "validate")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--config")
	})
}

func TestVersion(t *testing.T) {
	stdout, _, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "site-spider version ")
}

func TestWatch(t *testing.T) {
	good := goodSite(t)
	stateDir := t.TempDir()
	cfgPath := writeConfig(t, `
state_dir: "`+stateDir+`"
sites:
  good:
    root_url: "`+good.URL+`/"
`)

	t.Run("bad interval", func(t *testing.T) {
		_, _, err := runCmd(t, "watch", "-c", cfgPath, "--site", "good", "--interval", "soon")
		require.Error(t, err)
		assert.ErrorIs(t, err, utils.ErrConfigValidation)
	})

	t.Run("checks until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		var out bytes.Buffer
		cmd := NewRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"watch", "-c", cfgPath, "--site", "good", "--interval", "1h", "--loglevel", "error"})
		require.NoError(t, cmd.ExecuteContext(ctx))

		assert.Contains(t, out.String(), "OK: good (")
		_, err := os.Stat(filepath.Join(stateDir, "watch_state.json"))
		assert.NoError(t, err)
	})
}
