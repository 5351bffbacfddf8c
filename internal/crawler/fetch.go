package crawler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/leadcrawler/internal/metrics"
)

const maxPageErrorLen = 300

// FetchOptions controls visited-cache behavior.
type FetchOptions struct {
	// UseVisitedCache skips URLs that already have a page record.
	UseVisitedCache bool
	// VisitedTTL bounds how long a page record counts as visited. Zero or
	// negative means forever.
	VisitedTTL time.Duration
}

// FetchLayer retrieves pages through the visited cache, the per-domain budget
// and politeness throttle, and records every attempt in the page store.
type FetchLayer struct {
	getter   Getter
	pages    PageStore
	throttle *DomainThrottle
	clock    Clock
	opts     FetchOptions
	logger   *zap.Logger
}

// NewFetchLayer wires a FetchLayer.
func NewFetchLayer(
	getter Getter,
	pages PageStore,
	throttle *DomainThrottle,
	clock Clock,
	opts FetchOptions,
	logger *zap.Logger,
) *FetchLayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetchLayer{
		getter:   getter,
		pages:    pages,
		throttle: throttle,
		clock:    clock,
		opts:     opts,
		logger:   logger,
	}
}

// Fetch returns the body of rawURL when it was fetched with status 200. It
// returns false, never an error, for cached, over-budget, failed or non-200
// fetches.
func (f *FetchLayer) Fetch(ctx context.Context, rawURL string) ([]byte, bool) {
	target := NormalizeURL(rawURL)
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		f.logger.Debug("skipping non-http url", zap.String("url", rawURL))
		return nil, false
	}
	host := strings.ToLower(u.Hostname())

	if f.opts.UseVisitedCache && f.visited(ctx, target) {
		metrics.ObserveFetchSkip("cache")
		return nil, false
	}
	if !f.throttle.Allow(host) {
		metrics.ObserveFetchSkip("budget")
		f.logger.Debug("domain budget exhausted", zap.String("host", host))
		return nil, false
	}
	waited, err := f.throttle.Wait(ctx, host)
	if err != nil {
		f.logger.Warn("politeness wait aborted", zap.String("url", target), zap.Error(err))
		return nil, false
	}
	if waited > time.Millisecond {
		metrics.ObservePolitenessWait(waited)
	}

	resp, err := f.getter.Get(ctx, target)
	record := PageRecord{URL: target, LastCrawled: f.clock.Now()}
	if err != nil {
		record.StatusCode = TransportFailureStatus
		record.Error = truncate(err.Error(), maxPageErrorLen)
		f.logger.Warn("fetch failed", zap.String("url", target), zap.Error(err))
	} else {
		record.StatusCode = resp.StatusCode
	}
	f.recordPage(ctx, record)
	metrics.ObserveFetch(target, record.StatusCode, len(resp.Body))

	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, false
	}
	return resp.Body, true
}

func (f *FetchLayer) visited(ctx context.Context, target string) bool {
	page, found, err := f.pages.GetPage(ctx, target)
	if err != nil {
		f.logger.Warn("visited cache lookup failed", zap.String("url", target), zap.Error(err))
		return false
	}
	if !found {
		return false
	}
	if f.opts.VisitedTTL <= 0 {
		return true
	}
	return f.clock.Now().Sub(page.LastCrawled) < f.opts.VisitedTTL
}

func (f *FetchLayer) recordPage(ctx context.Context, record PageRecord) {
	if err := f.pages.PutPage(ctx, record); err != nil {
		f.logger.Warn("page record write failed", zap.String("url", record.URL), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
