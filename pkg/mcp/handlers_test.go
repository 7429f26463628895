package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/site-spider/pkg/config"
	"github.com/Sriram-PR/site-spider/pkg/storage"
)

func newTestServer(t *testing.T, sites map[string]config.SiteConfig, store storage.RunStore) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	appCfg := config.DefaultAppConfig()
	appCfg.Sites = sites
	s, err := NewServer(&ServerConfig{
		AppConfig: appCfg,
		Transport: "stdio",
		Logger:    logger,
		Store:     store,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func toolRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

// callTool invokes a handler and decodes its JSON text result
func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (map[string]any, *mcp.CallToolResult) {
	t.Helper()
	res, err := handler(context.Background(), toolRequest(args))
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	if res.IsError {
		return map[string]any{"error": text.Text}, res
	}
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	return decoded, res
}

func brokenSite(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><head><title>Home</title></head><body><a href="/gone">gone</a></body></html>`)
	}))
	t.Cleanup(server.Close)
	return server
}

// waitForJob polls get_job_status until the job leaves the running states
func waitForJob(t *testing.T, s *Server, jobID string) map[string]any {
	t.Helper()
	var status map[string]any
	require.Eventually(t, func() bool {
		status, _ = callTool(t, s.handleGetJobStatus, map[string]any{"job_id": jobID})
		st := status["status"]
		return st != string(JobStatusPending) && st != string(JobStatusRunning)
	}, 10*time.Second, 20*time.Millisecond)
	return status
}

func TestHandleCheckSite_URL(t *testing.T) {
	site := brokenSite(t)
	s := newTestServer(t, nil, nil)

	started, res := callTool(t, s.handleCheckSite, map[string]any{"url": site.URL + "/"})
	require.False(t, res.IsError, started["error"])
	assert.Equal(t, "started", started["status"])
	assert.Equal(t, float64(-1), started["max_depth"])
	jobID := started["job_id"].(string)

	status := waitForJob(t, s, jobID)
	assert.Equal(t, string(JobStatusCompleted), status["status"])
	assert.Equal(t, false, status["success"])
	assert.Equal(t, float64(2), status["pages"])
	assert.Equal(t, map[string]any{"HTTPError": float64(1)}, status["error_counts"])
	errs := status["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "HTTP 404")
}

func TestHandleCheckSite_SiteKeyWithDepth(t *testing.T) {
	site := brokenSite(t)
	s := newTestServer(t, map[string]config.SiteConfig{
		"home": {RootURL: site.URL + "/"},
	}, nil)

	started, res := callTool(t, s.handleCheckSite, map[string]any{"site_key": "home", "max_depth": 0})
	require.False(t, res.IsError, started["error"])
	assert.Equal(t, float64(0), started["max_depth"])

	status := waitForJob(t, s, started["job_id"].(string))
	assert.Equal(t, true, status["success"], "the broken link is beyond depth 0")
	assert.Equal(t, "home", status["target"])
}

func TestHandleCheckSite_Errors(t *testing.T) {
	s := newTestServer(t, map[string]config.SiteConfig{"home": {RootURL: "https://example.com/"}}, nil)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"nothing given", map[string]any{}, "required"},
		{"both given", map[string]any{"site_key": "home", "url": "https://example.com/"}, "not both"},
		{"unknown site", map[string]any{"site_key": "nope"}, "Available sites: [home]"},
		{"relative url", map[string]any{"url": "/docs"}, "invalid site"},
		{"bad depth", map[string]any{"url": "https://example.com/", "max_depth": -5}, "max_depth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, res := callTool(t, s.handleCheckSite, tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, out["error"], tt.want)
		})
	}
}

func TestHandleCheckSite_AlreadyRunning(t *testing.T) {
	s := newTestServer(t, nil, nil)
	job, created := s.jobManager.CreateJob("https://example.com/")
	require.True(t, created)

	out, _ := callTool(t, s.handleCheckSite, map[string]any{"url": "https://example.com/"})
	assert.Equal(t, "already_running", out["status"])
	assert.Equal(t, job.ID, out["job_id"])
}

func TestHandleGetJobStatus_Errors(t *testing.T) {
	s := newTestServer(t, nil, nil)

	out, res := callTool(t, s.handleGetJobStatus, map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "job_id")

	out, res = callTool(t, s.handleGetJobStatus, map[string]any{"job_id": "missing"})
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "not found")
}

func TestHandleCancelJob(t *testing.T) {
	s := newTestServer(t, nil, nil)
	job, _ := s.jobManager.CreateJob("docs")

	out, res := callTool(t, s.handleCancelJob, map[string]any{"job_id": job.ID})
	require.False(t, res.IsError)
	assert.Equal(t, string(JobStatusCancelled), out["status"])

	_, res = callTool(t, s.handleCancelJob, map[string]any{"job_id": job.ID})
	assert.True(t, res.IsError)
}

func TestHandleListErrorKinds(t *testing.T) {
	s := newTestServer(t, nil, nil)
	out, _ := callTool(t, s.handleListErrorKinds, nil)
	kinds := out["kinds"].([]any)
	assert.Contains(t, kinds, "HTTPError")
	assert.Contains(t, kinds, "EmptyScript")
	assert.NotContains(t, kinds, "FailedCrawl")
	assert.Len(t, kinds, 7)
}

func TestHandleListSites_WithHistory(t *testing.T) {
	site := brokenSite(t)
	store, err := storage.NewBadgerStore(t.TempDir(), logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	s := newTestServer(t, map[string]config.SiteConfig{
		"home": {RootURL: site.URL + "/"},
		"docs": {RootURL: "https://docs.example.com/"},
	}, store)

	started, _ := callTool(t, s.handleCheckSite, map[string]any{"site_key": "home"})
	waitForJob(t, s, started["job_id"].(string))

	out, _ := callTool(t, s.handleListSites, nil)
	assert.Equal(t, float64(2), out["total_sites"])
	sites := out["sites"].([]any)
	require.Len(t, sites, 2)
	docs := sites[0].(map[string]any)
	home := sites[1].(map[string]any)
	assert.Equal(t, "docs", docs["key"])
	assert.NotContains(t, docs, "last_checked")
	assert.Equal(t, "home", home["key"])
	assert.Equal(t, false, home["last_success"])

	history, _ := callTool(t, s.handleGetRunHistory, map[string]any{"site_key": "home"})
	assert.Equal(t, float64(1), history["total"])
	runs := history["runs"].([]any)
	assert.Equal(t, "home", runs[0].(map[string]any)["site_key"])
}
