package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DomainThrottle owns per-host politeness and page-budget state. The state is
// process-local: budgets are enforced per process, not across workers.
type DomainThrottle struct {
	mu         sync.Mutex
	spacing    time.Duration
	maxPerHost int
	limiters   map[string]*rate.Limiter
	counts     map[string]int
}

// NewDomainThrottle builds a throttle that spaces requests to the same host by
// at least spacing and allows at most maxPerHost attempts per host (0 means
// unlimited).
func NewDomainThrottle(spacing time.Duration, maxPerHost int) *DomainThrottle {
	return &DomainThrottle{
		spacing:    spacing,
		maxPerHost: maxPerHost,
		limiters:   make(map[string]*rate.Limiter),
		counts:     make(map[string]int),
	}
}

// Allow consumes one unit of host's page budget. It returns false, without
// consuming anything, once the budget is exhausted.
func (t *DomainThrottle) Allow(host string) bool {
	key := strings.ToLower(host)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.maxPerHost > 0 && t.counts[key] >= t.maxPerHost {
		return false
	}
	t.counts[key]++
	return true
}

// Count returns the number of attempts recorded for host.
func (t *DomainThrottle) Count(host string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[strings.ToLower(host)]
}

// Wait blocks until host may be contacted again and returns the time spent
// waiting.
func (t *DomainThrottle) Wait(ctx context.Context, host string) (time.Duration, error) {
	limiter := t.limiter(strings.ToLower(host))
	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return time.Since(start), fmt.Errorf("politeness wait: %w", err)
	}
	return time.Since(start), nil
}

func (t *DomainThrottle) limiter(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	limiter, ok := t.limiters[host]
	if !ok {
		limit := rate.Inf
		if t.spacing > 0 {
			limit = rate.Every(t.spacing)
		}
		limiter = rate.NewLimiter(limit, 1)
		t.limiters[host] = limiter
	}
	return limiter
}
