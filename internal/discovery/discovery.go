// Package discovery seeds the crawl frontier from web search. Each run issues
// a batch of queries from a rotating cursor, spreads them over the configured
// providers under per-provider daily quotas and persists the cursor and quota
// counters for the next run.
package discovery

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
	"github.com/JakeFAU/leadcrawler/internal/heuristics"
	"github.com/JakeFAU/leadcrawler/internal/metrics"
)

// ErrQuotaExhausted means no configured provider had quota left for a query.
var ErrQuotaExhausted = errors.New("all discovery providers exhausted")

const (
	defaultBatchSize   = 5
	defaultPerQueryCap = 10
	defaultMaxURLs     = 50
	dateLayout         = "2006-01-02"
)

// Options bounds one discovery pass.
type Options struct {
	BatchSize   int
	PerQueryCap int
	MaxURLs     int
	// Quotas caps calls per provider name per UTC day. Missing or
	// non-positive entries disable the provider.
	Quotas      map[string]int
	LibraryOnly bool
}

// Discoverer turns search queries into seed URLs.
type Discoverer struct {
	queries   []string
	providers []Provider
	state     StateStore
	rules     *heuristics.Rules
	clock     crawler.Clock
	opts      Options
	logger    *zap.Logger
}

// NewDiscoverer wires a Discoverer.
func NewDiscoverer(
	queries []string,
	providers []Provider,
	state StateStore,
	rules *heuristics.Rules,
	clock crawler.Clock,
	opts Options,
	logger *zap.Logger,
) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rules == nil {
		rules = heuristics.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.PerQueryCap <= 0 {
		opts.PerQueryCap = defaultPerQueryCap
	}
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = defaultMaxURLs
	}
	return &Discoverer{
		queries:   queries,
		providers: providers,
		state:     state,
		rules:     rules,
		clock:     clock,
		opts:      opts,
		logger:    logger,
	}
}

// DiscoverSeedURLs runs one pass and returns normalized, deduplicated seed
// URLs. The cursor advances by the batch size even when nothing is found.
// Only a failure to load state that is not simply missing aborts the pass.
func (d *Discoverer) DiscoverSeedURLs(ctx context.Context) ([]string, error) {
	if len(d.queries) == 0 {
		d.logger.Info("no discovery queries configured")
		return nil, nil
	}
	st, err := d.state.Load(ctx)
	if err != nil {
		return nil, err
	}
	today := d.clock.Now().UTC().Format(dateLayout)
	if st.Date != today {
		st.Date = today
		st.Used = map[string]int{}
	}
	if st.Used == nil {
		st.Used = map[string]int{}
	}

	n := len(d.queries)
	start := ((st.QueryIndex % n) + n) % n
	batch := min(d.opts.BatchSize, n)

	seen := make(map[string]struct{})
	var out []string
	for i := 0; i < batch && len(out) < d.opts.MaxURLs; i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		pos := start + i
		query := d.queries[pos%n]
		urls, provider, err := d.search(ctx, &st, query, pos)
		if errors.Is(err, ErrQuotaExhausted) {
			d.logger.Info("discovery quota exhausted", zap.String("query", query))
			break
		}
		added := 0
		for _, raw := range urls {
			u := crawler.NormalizeURL(raw)
			if !crawler.IsHTTPURL(u) {
				continue
			}
			if d.rules.BlocksLeadDomain(crawler.SiteHost(u), d.opts.LibraryOnly) {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
			added++
			if len(out) >= d.opts.MaxURLs {
				break
			}
		}
		d.logger.Debug("discovery query done",
			zap.String("query", query),
			zap.String("provider", provider),
			zap.Int("urls", added),
		)
	}

	st.QueryIndex = (start + d.opts.BatchSize) % n
	if err := d.state.Save(ctx, st); err != nil {
		d.logger.Warn("failed to persist discovery state", zap.Error(err))
	}
	metrics.ObserveDiscoveredURLs(len(out))
	d.logger.Info("discovery finished",
		zap.Int("urls", len(out)),
		zap.Int("next_query_index", st.QueryIndex),
		zap.Any("used", st.Used),
	)
	return out, nil
}

// search tries providers in an order rotated by pos and returns the results
// of the first call that succeeds. Every issued call consumes quota.
func (d *Discoverer) search(ctx context.Context, st *State, query string, pos int) ([]string, string, error) {
	if len(d.providers) == 0 {
		return nil, "", ErrQuotaExhausted
	}
	issued := false
	for j := range d.providers {
		p := d.providers[(pos+j)%len(d.providers)]
		name := p.Name()
		if !p.Configured() {
			continue
		}
		quota := d.opts.Quotas[name]
		if quota <= 0 || st.Used[name] >= quota {
			continue
		}
		st.Used[name]++
		issued = true

		callCtx, cancel := context.WithTimeout(ctx, defaultProviderTimeout+5*time.Second)
		urls, err := p.Search(callCtx, query, d.opts.PerQueryCap)
		cancel()
		metrics.ObserveProviderCall(name, err == nil)
		if err != nil {
			d.logger.Warn("discovery provider failed",
				zap.String("provider", name),
				zap.String("query", query),
				zap.Error(err),
			)
			continue
		}
		return truncate(urls, d.opts.PerQueryCap), name, nil
	}
	if !issued {
		return nil, "", ErrQuotaExhausted
	}
	return nil, "", nil
}

// Providers builds the standard provider rotation from API keys. Providers
// without a key are still returned and skipped at call time.
func Providers(braveKey, serperKey, openAIKey, openAIModel string, opts ...Option) []Provider {
	return []Provider{
		NewBrave(braveKey, opts...),
		NewSerper(serperKey, opts...),
		NewOpenAI(openAIKey, openAIModel, opts...),
	}
}
