package fetch

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// Limiter combines the global in-flight cap with the per-host pool
// Shared by every crawl that uses the same client
type Limiter struct {
	global *semaphore.Weighted // nil = unbounded
	hosts  *HostSemaphorePool
}

// NewLimiter builds a limiter; 0 for either limit means unbounded
func NewLimiter(maxRequests, maxPerHost int, log *logrus.Entry) *Limiter {
	l := &Limiter{hosts: NewHostSemaphorePool(maxPerHost, log)}
	if maxRequests > 0 {
		l.global = semaphore.NewWeighted(int64(maxRequests))
	}
	return l
}

// Hosts exposes the per-host pool, e.g. to run eviction
func (l *Limiter) Hosts() *HostSemaphorePool {
	return l.hosts
}

// Acquire takes a global permit then a host permit. The returned release frees both
func (l *Limiter) Acquire(ctx context.Context, host string) (release func(), err error) {
	if l == nil {
		return func() {}, nil
	}
	if l.global != nil {
		if err := l.global.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("%w: global: %w", utils.ErrSemaphoreTimeout, err)
		}
	}
	if err := l.hosts.Acquire(ctx, host); err != nil {
		if l.global != nil {
			l.global.Release(1)
		}
		return nil, fmt.Errorf("%w: host %s: %w", utils.ErrSemaphoreTimeout, host, err)
	}
	return func() {
		l.hosts.Release(host)
		if l.global != nil {
			l.global.Release(1)
		}
	}, nil
}
