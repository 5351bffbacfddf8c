// Package app builds the long-lived services of one crawl process from a
// config.Config and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/leadcrawler/internal/api"
	"github.com/JakeFAU/leadcrawler/internal/config"
	"github.com/JakeFAU/leadcrawler/internal/crawler"
	"github.com/JakeFAU/leadcrawler/internal/discovery"
	"github.com/JakeFAU/leadcrawler/internal/export"
	collyfetcher "github.com/JakeFAU/leadcrawler/internal/fetcher/colly"
	"github.com/JakeFAU/leadcrawler/internal/heuristics"
	"github.com/JakeFAU/leadcrawler/internal/logging"
	"github.com/JakeFAU/leadcrawler/internal/platform"
	memqueue "github.com/JakeFAU/leadcrawler/internal/queue/memory"
	pubsubqueue "github.com/JakeFAU/leadcrawler/internal/queue/pubsub"
	"github.com/JakeFAU/leadcrawler/internal/storage"
	"github.com/JakeFAU/leadcrawler/internal/storage/gcs"
	"github.com/JakeFAU/leadcrawler/internal/storage/local"
	"github.com/JakeFAU/leadcrawler/internal/storage/memory"
	"github.com/JakeFAU/leadcrawler/internal/storage/postgres"
	redisstore "github.com/JakeFAU/leadcrawler/internal/storage/redis"
)

// App holds the shared services for one run. It is built once at startup and
// closed when the command finishes.
type App struct {
	cfg    config.Config
	mode   crawler.Mode
	runID  string
	logger *zap.Logger

	rules      *heuristics.Rules
	leads      crawler.LeadStore
	pages      crawler.PageStore
	queue      crawler.Queue
	sink       *export.JSONLSink
	engine     *crawler.Engine
	discoverer *discovery.Discoverer

	gcsClient *gcsstorage.Client
	pingers   []pinger
	closers   []func(context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// New wires every component selected by cfg. On error, whatever was already
// opened is closed before returning.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	mode, err := crawler.ParseMode(cfg.Crawler.Mode)
	if err != nil {
		return nil, err
	}
	runID, err := platform.NewRunID()
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:    cfg,
		mode:   mode,
		runID:  runID,
		logger: logging.ForRun(logger, runID, string(mode)),
	}
	if err := a.build(ctx); err != nil {
		if cerr := a.Close(ctx); cerr != nil {
			a.logger.Warn("cleanup after failed init", zap.Error(cerr))
		}
		return nil, err
	}
	a.logger.Info("application services initialized",
		zap.String("lead_store", cfg.Storage.Backend),
		zap.String("page_store", cfg.Storage.EffectivePageBackend()),
		zap.Bool("queue", a.queue != nil),
		zap.Bool("discovery", a.discoverer != nil),
		zap.Bool("export", a.sink != nil),
	)
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	rules, err := buildRules(a.cfg.Crawler.BlockedDomainsFile)
	if err != nil {
		return err
	}
	a.rules = rules

	if err := a.buildStores(ctx); err != nil {
		return err
	}
	if a.mode != crawler.ModeLocal {
		if err := a.buildQueue(ctx); err != nil {
			return err
		}
	}
	if a.cfg.Export.Enabled {
		if err := a.buildExport(ctx); err != nil {
			return err
		}
	}
	if a.cfg.Discovery.Enabled {
		if err := a.buildDiscoverer(ctx); err != nil {
			return err
		}
	}
	a.buildEngine()
	return nil
}

func buildRules(blockedDomainsFile string) (*heuristics.Rules, error) {
	lists := heuristics.DefaultLists()
	if blockedDomainsFile != "" {
		extra, err := config.ReadList(blockedDomainsFile)
		if err != nil {
			return nil, fmt.Errorf("blocked domains: %w", err)
		}
		lists.BlockedLeadDomains = append(lists.BlockedLeadDomains, extra...)
	}
	return heuristics.New(lists), nil
}

func (a *App) buildStores(ctx context.Context) error {
	var pg *postgres.Store
	openPostgres := func() (*postgres.Store, error) {
		if pg != nil {
			return pg, nil
		}
		pc := a.cfg.Storage.Postgres
		store, err := postgres.New(ctx, postgres.Config{
			DSN:             pc.DSN,
			LeadTable:       pc.LeadTable,
			PageTable:       pc.PageTable,
			MaxConns:        pc.MaxConns,
			MinConns:        pc.MinConns,
			MaxConnLifetime: pc.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		pg = store
		a.pingers = append(a.pingers, store)
		a.closers = append(a.closers, func(context.Context) error {
			store.Close()
			return nil
		})
		return store, nil
	}

	switch a.cfg.Storage.Backend {
	case config.BackendPostgres:
		store, err := openPostgres()
		if err != nil {
			return err
		}
		a.leads = store
	case config.BackendMemory:
		a.leads = memory.NewLeadStore()
	default:
		return fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}

	switch backend := a.cfg.Storage.EffectivePageBackend(); backend {
	case config.BackendPostgres:
		store, err := openPostgres()
		if err != nil {
			return err
		}
		a.pages = store
	case config.BackendRedis:
		rc := a.cfg.Storage.Redis
		rcfg := redisstore.Config{
			Address:   rc.Address,
			Password:  rc.Password,
			DB:        rc.DB,
			KeyPrefix: rc.KeyPrefix,
			TTL:       rc.TTL,
		}
		client, err := redisstore.NewClient(rcfg)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		store, err := redisstore.NewPageStore(client, rcfg)
		if err != nil {
			return err
		}
		a.pingers = append(a.pingers, store)
		a.pages = store
	case config.BackendMemory:
		a.pages = memory.NewPageStore()
	default:
		return fmt.Errorf("unknown page backend %q", backend)
	}
	return nil
}

func (a *App) buildQueue(ctx context.Context) error {
	qc := a.cfg.Queue
	switch qc.Backend {
	case config.BackendMemory:
		a.queue = memqueue.NewQueue(qc.VisibilityTimeout)
	case config.BackendPubSub:
		q, err := pubsubqueue.New(ctx, pubsubqueue.Config{
			ProjectID:    qc.PubSub.ProjectID,
			Topic:        qc.PubSub.Topic,
			Subscription: qc.PubSub.Subscription,
			AckDeadline:  qc.PubSub.AckDeadline,
		}, a.logger.Named(logging.ComponentQueue))
		if err != nil {
			return fmt.Errorf("init pubsub queue: %w", err)
		}
		a.queue = q
	default:
		return fmt.Errorf("unknown queue backend %q", qc.Backend)
	}
	q := a.queue
	a.closers = append(a.closers, func(context.Context) error { return q.Close() })
	return nil
}

func (a *App) gcs(ctx context.Context) (*gcsstorage.Client, error) {
	if a.gcsClient != nil {
		return a.gcsClient, nil
	}
	client, err := gcsstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("init gcs client: %w", err)
	}
	a.gcsClient = client
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	return client, nil
}

func (a *App) buildExport(ctx context.Context) error {
	ec := a.cfg.Export
	var snapshot *export.Snapshot
	if ec.GCSBucket != "" {
		client, err := a.gcs(ctx)
		if err != nil {
			return err
		}
		store, err := gcs.New(client, gcs.Config{Bucket: ec.GCSBucket, Prefix: ec.GCSPrefix})
		if err != nil {
			return err
		}
		snapshot = &export.Snapshot{Store: store, Path: ec.ObjectName}
	}
	sink, err := export.NewJSONLSink(ec.Path, snapshot, a.logger)
	if err != nil {
		return err
	}
	a.sink = sink
	a.closers = append(a.closers, sink.Close)
	return nil
}

func (a *App) buildDiscoverer(ctx context.Context) error {
	dc := a.cfg.Discovery
	queries, err := config.ReadList(dc.QueriesFile)
	if err != nil {
		return fmt.Errorf("discovery queries: %w", err)
	}

	var (
		blobs     storage.BlobStore
		statePath = dc.StatePath
	)
	switch dc.StateBackend {
	case config.BackendFile:
		dir := filepath.Dir(dc.StatePath)
		store, err := local.New(local.Config{BaseDir: dir})
		if err != nil {
			return fmt.Errorf("discovery state dir: %w", err)
		}
		blobs, statePath = store, filepath.Base(dc.StatePath)
	case config.BackendGCS:
		client, err := a.gcs(ctx)
		if err != nil {
			return err
		}
		store, err := gcs.New(client, gcs.Config{Bucket: dc.StateBucket})
		if err != nil {
			return err
		}
		blobs = store
	case config.BackendMemory:
		blobs = memory.NewBlobStore()
	default:
		return fmt.Errorf("unknown discovery state backend %q", dc.StateBackend)
	}

	providers := discovery.Providers(dc.BraveAPIKey, dc.SerperAPIKey, dc.OpenAIAPIKey, dc.OpenAIModel)
	a.discoverer = discovery.NewDiscoverer(
		queries,
		providers,
		discovery.NewBlobStateStore(blobs, statePath),
		a.rules,
		platform.NewClock(),
		discovery.Options{
			BatchSize:   dc.BatchSize,
			PerQueryCap: dc.PerQueryCap,
			MaxURLs:     dc.MaxURLs,
			Quotas:      dc.Quotas,
			LibraryOnly: a.cfg.Leads.LibraryOnly,
		},
		a.logger.Named(logging.ComponentDiscovery),
	)
	return nil
}

func (a *App) buildEngine() {
	cc := a.cfg.Crawler
	clock := platform.NewClock()

	getter := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cc.UserAgent,
		RespectRobots: cc.RespectRobots,
		Timeout:       cc.RequestTimeout,
		MaxBodySize:   cc.MaxBodyBytes,
	})
	fetch := crawler.NewFetchLayer(
		getter,
		a.pages,
		crawler.NewDomainThrottle(cc.DelayPerDomain, cc.MaxPagesPerDomain),
		clock,
		crawler.FetchOptions{UseVisitedCache: cc.UseVisitedCache, VisitedTTL: cc.VisitedTTL},
		a.logger.Named(logging.ComponentFetch),
	)
	extractor := crawler.NewExtractor(a.rules, crawler.ExtractOptions{
		AllowExternal: cc.AllowExternalLinks,
		MaxLinks:      cc.MaxLinksPerPage,
	})

	var sink crawler.LeadSink
	if a.sink != nil {
		sink = a.sink
	}
	lc := a.cfg.Leads
	leads := crawler.NewLeadAdapter(
		a.leads,
		sink,
		platform.NewHasher(),
		clock,
		a.rules,
		crawler.NewDraftWriter(crawler.Outreach{
			SenderName:  a.cfg.Outreach.SenderName,
			Website:     a.cfg.Outreach.Website,
			ReviewHours: a.cfg.Outreach.ReviewHours,
		}),
		crawler.LeadOptions{
			DedupeByDomain:         lc.DedupeByDomain,
			DedupeFormsByDomain:    lc.DedupeFormsByDomain,
			DomainSuppression:      lc.DomainSuppression,
			RequireSameDomainForms: lc.RequireSameDomainForms,
			LibraryOnly:            lc.LibraryOnly,
			MinRoleConfidence:      lc.MinRoleConfidence,
			MinLibraryConfidence:   lc.MinLibraryConfidence,
			TouchedBy:              lc.TouchedBy,
		},
		a.logger.Named(logging.ComponentLeads),
	)

	a.engine = crawler.NewEngine(fetch, extractor, leads, a.queue, crawler.EngineOptions{
		MaxPages:         cc.MaxPagesPerRun,
		MaxLeads:         cc.MaxLeadsPerRun,
		ReceiveBatch:     a.cfg.Queue.ReceiveBatch,
		ReceiveWait:      a.cfg.Queue.ReceiveWait,
		MaxEmptyReceives: a.cfg.Queue.MaxEmptyReceives,
	}, a.logger.Named(logging.ComponentFrontier))
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// RunID identifies this process run in logs.
func (a *App) RunID() string { return a.runID }

// Mode returns the configured crawl mode.
func (a *App) Mode() crawler.Mode { return a.mode }

// Engine returns the frontier engine.
func (a *App) Engine() *crawler.Engine { return a.engine }

// Discoverer returns the seed discoverer, or nil when discovery is disabled.
func (a *App) Discoverer() *discovery.Discoverer { return a.discoverer }

// LeadStore returns the configured lead store.
func (a *App) LeadStore() crawler.LeadStore { return a.leads }

// Queue returns the work queue, or nil in local mode.
func (a *App) Queue() crawler.Queue { return a.queue }

// Ready pings every networked store.
func (a *App) Ready(ctx context.Context) error {
	for _, p := range a.pingers {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StartMetrics serves /healthz, /readyz and /metrics until ctx is canceled.
// It is a no-op when metrics are disabled.
func (a *App) StartMetrics(ctx context.Context) {
	if !a.cfg.Metrics.Enabled {
		return
	}
	addr := fmt.Sprintf(":%d", a.cfg.Metrics.Port)
	srv := api.NewServer(a.Ready, a.logger.Named(logging.ComponentAPI))
	go func() {
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			a.logger.Error("metrics listener failed", zap.Error(err))
		}
	}()
}

// Close releases resources in reverse order of acquisition. The export
// snapshot upload happens here, so ctx should outlive the crawl.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
