package fetch

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// HTTPFetcher issues a GET and returns the response whatever its status
// An error means no response was received at all. Implementations must be safe for concurrent use
type HTTPFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*http.Response, error)
}

// RetryPolicy controls retries of transport-level failures
// HTTP status codes are never retried: every response is a result
type RetryPolicy struct {
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
}

// Fetcher performs GET requests through an http.Client with a fixed User-Agent
type Fetcher struct {
	client    *http.Client
	userAgent string
	retry     RetryPolicy
	log       *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, userAgent string, retry RetryPolicy, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		retry:     retry,
		log:       log,
	}
}

// Fetch performs the GET. Caller must close the body of a non-nil response
// Transport errors are retried with exponential backoff and jitter when the policy allows
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	reqLog := f.log.WithField("url", rawURL)
	var lastErr error

	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := f.backoff(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": f.retry.MaxRetries, "delay": delay}).Warn("Retrying request...")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}

		resp, err := f.client.Do(req)
		if err == nil {
			reqLog.WithFields(logrus.Fields{"status_code": resp.StatusCode, "attempt": attempt}).Debug("Fetched")
			return resp, nil
		}
		lastErr = err

		// Cancellation of the caller's context is final; client timeouts are retried
		if ctx.Err() != nil {
			return nil, err
		}
		reqLog.WithFields(logrus.Fields{"attempt": attempt, "error_category": utils.CategorizeError(err)}).Debugf("Transport error: %v", err)
	}

	if f.retry.MaxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// backoff returns initial * 2^(attempt-1), capped, with +/- 10% jitter
func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(f.retry.InitialRetryDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || (f.retry.MaxRetryDelay > 0 && delay > f.retry.MaxRetryDelay) {
		delay = f.retry.MaxRetryDelay
	}
	if spread := int64(delay) / 5; spread > 0 {
		delay += time.Duration(rand.Int63n(spread)) - delay/10
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Drain discards the rest of the body and closes it so the connection can be reused
func Drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
