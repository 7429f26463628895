package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/site-spider/pkg/config"
	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// testPolicy returns a retry policy with fast delays for testing
func testPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        maxRetries,
		InitialRetryDelay: 10 * time.Millisecond,
		MaxRetryDelay:     50 * time.Millisecond,
	}
}

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testClient returns an http.Client suitable for testing
func testClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// mockServer creates an httptest.Server that returns status codes in sequence.
// Returns the server and an atomic counter tracking request attempts.
func mockServer(t *testing.T, statusCodes []int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := int(attemptCount.Add(1)) - 1
		if idx >= len(statusCodes) {
			idx = len(statusCodes) - 1 // repeat last status
		}
		w.WriteHeader(statusCodes[idx])
	}))
	t.Cleanup(server.Close)
	return server, attemptCount
}

// closedServerURL returns a URL nothing listens on
func closedServerURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr + "/"
}

func TestFetch_Success(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	f := NewFetcher(testClient(), "spider-test", testPolicy(0), testLogger())
	resp, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	defer Drain(resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "spider-test", gotUA)
}

func TestFetch_StatusCodesAreNotRetried(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			server, attempts := mockServer(t, []int{code, http.StatusOK})

			f := NewFetcher(testClient(), "", testPolicy(3), testLogger())
			resp, err := f.Fetch(context.Background(), server.URL)
			require.NoError(t, err, "a response is a result, whatever its status")
			defer Drain(resp)

			assert.Equal(t, code, resp.StatusCode)
			assert.Equal(t, int32(1), attempts.Load())
		})
	}
}

func TestFetch_TransportError_NoRetries(t *testing.T) {
	f := NewFetcher(testClient(), "", testPolicy(0), testLogger())
	resp, err := f.Fetch(context.Background(), closedServerURL(t))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.False(t, errors.Is(err, utils.ErrRetryFailed))
	assert.Equal(t, "Network_ConnectionRefused", utils.CategorizeError(err))
}

func TestFetch_TransportError_AllRetriesFail(t *testing.T) {
	f := NewFetcher(testClient(), "", testPolicy(2), testLogger())
	_, err := f.Fetch(context.Background(), closedServerURL(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRetryFailed)
}

func TestFetch_InvalidRequest(t *testing.T) {
	f := NewFetcher(testClient(), "", testPolicy(0), testLogger())
	_, err := f.Fetch(context.Background(), "http://[::1")
	assert.ErrorIs(t, err, utils.ErrRequestCreation)
}

func TestFetch_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server, attempts := mockServer(t, []int{http.StatusOK})
	f := NewFetcher(testClient(), "", testPolicy(3), testLogger())
	_, err := f.Fetch(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), attempts.Load())
}

func TestFetch_ClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := &http.Client{Timeout: 20 * time.Millisecond}
	f := NewFetcher(client, "", testPolicy(0), testLogger())
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
}

func TestNewClient_RedirectLimit(t *testing.T) {
	var hits atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, server.URL+"/loop", http.StatusFound)
	}))
	defer server.Close()

	cfg := config.HTTPClientConfig{Timeout: 5 * time.Second, MaxRedirects: 3}
	f := NewFetcher(NewClient(cfg, testLogger()), "", testPolicy(0), testLogger())
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 3 redirects")
	assert.Equal(t, int32(3), hits.Load())
}
