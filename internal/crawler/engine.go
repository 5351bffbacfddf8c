package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/leadcrawler/internal/metrics"
)

// Mode selects how the frontier runs.
type Mode string

// Frontier modes.
const (
	ModeLocal    Mode = "local"
	ModeProducer Mode = "producer"
	ModeWorker   Mode = "worker"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeLocal, ModeProducer, ModeWorker:
		return m, nil
	default:
		return "", fmt.Errorf("unknown crawl mode %q", s)
	}
}

// ErrMalformedMessage is returned for queue bodies that cannot be processed.
var ErrMalformedMessage = errors.New("malformed queue message")

const (
	defaultReceiveBatch     = 10
	defaultReceiveWait      = 20 * time.Second
	defaultMaxEmptyReceives = 3
)

// EngineOptions bounds a frontier run.
type EngineOptions struct {
	// MaxPages caps pages fetched with content per run. Zero means unlimited.
	MaxPages int
	// MaxLeads caps leads saved per local run. Zero means unlimited.
	MaxLeads         int
	ReceiveBatch     int
	ReceiveWait      time.Duration
	MaxEmptyReceives int
}

// Engine drives the per-URL routine (fetch, extract, qualify, enqueue links)
// in local, producer or worker mode.
type Engine struct {
	fetcher   PageFetcher
	extractor *Extractor
	contacts  *ContactResolver
	leads     *LeadAdapter
	queue     Queue
	opts      EngineOptions
	logger    *zap.Logger
}

// NewEngine wires an Engine. queue may be nil for local runs.
func NewEngine(
	fetcher PageFetcher,
	extractor *Extractor,
	leads *LeadAdapter,
	queue Queue,
	opts EngineOptions,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ReceiveBatch <= 0 {
		opts.ReceiveBatch = defaultReceiveBatch
	}
	if opts.ReceiveWait <= 0 {
		opts.ReceiveWait = defaultReceiveWait
	}
	if opts.MaxEmptyReceives <= 0 {
		opts.MaxEmptyReceives = defaultMaxEmptyReceives
	}
	return &Engine{
		fetcher:   fetcher,
		extractor: extractor,
		contacts:  NewContactResolver(fetcher, extractor),
		leads:     leads,
		queue:     queue,
		opts:      opts,
		logger:    logger,
	}
}

type task struct {
	url     string
	seedURL string
}

type outcome struct {
	fetched  bool
	saved    bool
	rejected bool
	links    []string
}

// process runs the shared per-URL routine. It is safe to re-execute for the
// same URL: fetches go through the visited cache and leads are upserted.
func (e *Engine) process(ctx context.Context, t task) outcome {
	body, ok := e.fetcher.Fetch(ctx, t.url)
	if !ok {
		return outcome{}
	}
	out := outcome{fetched: true}
	page := ParsePage(t.url, body)
	rules := e.extractor.Rules()
	signals := e.extractor.Signals(page)
	role, roleConfidence := rules.DetectRole(signals)

	contact := e.contacts.Resolve(ctx, page)
	if contact.Found() {
		_, saved := e.leads.Save(ctx, Candidate{
			Page:              page,
			Contact:           contact,
			Role:              role,
			RoleConfidence:    roleConfidence,
			LibraryConfidence: rules.LibraryConfidence(signals),
		})
		out.saved = saved
		out.rejected = !saved
	}
	out.links = e.extractor.Links(page, t.seedURL)
	return out
}

func (e *Engine) pageBudgetReached(stats Stats) bool {
	return e.opts.MaxPages > 0 && stats.PagesFetched >= e.opts.MaxPages
}

func (s *Stats) record(out outcome) {
	if out.fetched {
		s.PagesFetched++
	}
	if out.saved {
		s.LeadsSaved++
	}
	if out.rejected {
		s.LeadsRejected++
	}
}

// RunLocal crawls breadth-first from seeds with an in-process FIFO until the
// frontier is empty or a page or lead budget is reached.
func (e *Engine) RunLocal(ctx context.Context, seeds []string) (Stats, error) {
	var stats Stats
	frontier := make([]task, 0, len(seeds))
	for _, seed := range seeds {
		if u := NormalizeURL(seed); IsHTTPURL(u) {
			frontier = append(frontier, task{url: u, seedURL: u})
		} else {
			e.logger.Warn("ignoring invalid seed", zap.String("seed", seed))
		}
	}

	visited := make(map[string]struct{})
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("local crawl canceled: %w", err)
		}
		if e.pageBudgetReached(stats) {
			e.logger.Info("page budget reached", zap.Int("max_pages", e.opts.MaxPages))
			break
		}
		if e.opts.MaxLeads > 0 && stats.LeadsSaved >= e.opts.MaxLeads {
			e.logger.Info("lead budget reached", zap.Int("max_leads", e.opts.MaxLeads))
			break
		}

		t := frontier[0]
		frontier = frontier[1:]
		if _, seen := visited[t.url]; seen {
			continue
		}
		visited[t.url] = struct{}{}
		stats.PagesVisited++

		out := e.process(ctx, t)
		stats.record(out)
		for _, link := range out.links {
			if _, seen := visited[link]; seen {
				continue
			}
			frontier = append(frontier, task{url: link, seedURL: t.seedURL})
			stats.LinksQueued++
		}
	}
	e.logger.Info("local crawl finished", statsFields(stats)...)
	return stats, nil
}

// RunProducer pushes every valid seed to the distributed queue and returns.
func (e *Engine) RunProducer(ctx context.Context, seeds []string) (Stats, error) {
	var stats Stats
	if e.queue == nil {
		return stats, errors.New("producer mode requires a queue")
	}
	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("producer canceled: %w", err)
		}
		u := NormalizeURL(seed)
		if !IsHTTPURL(u) {
			e.logger.Warn("ignoring invalid seed", zap.String("seed", seed))
			continue
		}
		if err := e.queue.Send(ctx, QueueMessage{URL: u, SeedURL: u}); err != nil {
			e.logger.Warn("seed enqueue failed", zap.String("url", u), zap.Error(err))
			continue
		}
		metrics.ObserveQueueMessage("sent")
		stats.SeedsQueued++
	}
	e.logger.Info("producer finished", statsFields(stats)...)
	return stats, nil
}

// RunWorker leases batches from the distributed queue, processes each message
// and acknowledges it afterwards. Discovered links go back to the queue. The
// loop ends after MaxEmptyReceives consecutive empty receives or once the page
// budget is reached; messages still leased at that point are left to expire.
func (e *Engine) RunWorker(ctx context.Context) (Stats, error) {
	var stats Stats
	if e.queue == nil {
		return stats, errors.New("worker mode requires a queue")
	}
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	visited := make(map[string]struct{})
	empty := 0
	for {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("worker canceled: %w", err)
		}
		if e.pageBudgetReached(stats) {
			e.logger.Info("page budget reached", zap.Int("max_pages", e.opts.MaxPages))
			break
		}

		deliveries, err := e.queue.Receive(ctx, e.opts.ReceiveBatch, e.opts.ReceiveWait)
		if err != nil {
			if ctx.Err() != nil {
				return stats, fmt.Errorf("worker canceled: %w", ctx.Err())
			}
			e.logger.Warn("queue receive failed", zap.Error(err))
		}
		if len(deliveries) == 0 {
			empty++
			if empty >= e.opts.MaxEmptyReceives {
				e.logger.Info("queue drained", zap.Int("empty_receives", empty))
				break
			}
			continue
		}
		empty = 0

		for i, d := range deliveries {
			if e.pageBudgetReached(stats) {
				e.logger.Info("page budget reached mid-batch",
					zap.Int("max_pages", e.opts.MaxPages),
					zap.Int("unacked", len(deliveries)-i),
				)
				e.logger.Info("worker finished", statsFields(stats)...)
				return stats, nil
			}
			e.handleDelivery(ctx, d, visited, &stats)
		}
	}
	e.logger.Info("worker finished", statsFields(stats)...)
	return stats, nil
}

func (e *Engine) handleDelivery(ctx context.Context, d Delivery, visited map[string]struct{}, stats *Stats) {
	metrics.ObserveQueueMessage("received")
	msg, err := DecodeMessage(d.Body)
	if err != nil {
		stats.PoisonMessages++
		metrics.ObserveQueueMessage("poison")
		e.logger.Warn("dropping malformed message", zap.ByteString("body", d.Body), zap.Error(err))
		e.ack(ctx, d, stats)
		return
	}

	if _, seen := visited[msg.URL]; !seen {
		visited[msg.URL] = struct{}{}
		stats.PagesVisited++
		out := e.process(ctx, task{url: msg.URL, seedURL: msg.SeedURL})
		stats.record(out)
		for _, link := range out.links {
			if _, seen := visited[link]; seen {
				continue
			}
			if err := e.queue.Send(ctx, QueueMessage{URL: link, SeedURL: msg.SeedURL}); err != nil {
				e.logger.Warn("link enqueue failed", zap.String("url", link), zap.Error(err))
				continue
			}
			metrics.ObserveQueueMessage("sent")
			stats.LinksQueued++
		}
	}
	e.ack(ctx, d, stats)
}

func (e *Engine) ack(ctx context.Context, d Delivery, stats *Stats) {
	if err := e.queue.Ack(ctx, d.Receipt); err != nil {
		e.logger.Warn("queue ack failed", zap.String("receipt", d.Receipt), zap.Error(err))
		return
	}
	metrics.ObserveQueueMessage("acked")
	stats.MessagesAcked++
}

// DecodeMessage parses and validates a queue body. A missing seed_url falls
// back to the message URL.
func DecodeMessage(body []byte) (QueueMessage, error) {
	var msg QueueMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return QueueMessage{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	msg.URL = NormalizeURL(msg.URL)
	if !IsHTTPURL(msg.URL) {
		return QueueMessage{}, fmt.Errorf("%w: url %q", ErrMalformedMessage, msg.URL)
	}
	if msg.SeedURL == "" {
		msg.SeedURL = msg.URL
	}
	return msg, nil
}

func statsFields(s Stats) []zap.Field {
	return []zap.Field{
		zap.Int("pages_visited", s.PagesVisited),
		zap.Int("pages_fetched", s.PagesFetched),
		zap.Int("leads_saved", s.LeadsSaved),
		zap.Int("leads_rejected", s.LeadsRejected),
		zap.Int("links_queued", s.LinksQueued),
		zap.Int("seeds_queued", s.SeedsQueued),
		zap.Int("messages_acked", s.MessagesAcked),
		zap.Int("poison_messages", s.PoisonMessages),
	}
}
