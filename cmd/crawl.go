package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/leadcrawler/internal/app"
	"github.com/JakeFAU/leadcrawler/internal/config"
	"github.com/JakeFAU/leadcrawler/internal/crawler"
)

type crawlOptions struct {
	mode     string
	discover bool
	dryRun   bool
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var opts crawlOptions
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs the crawler in local, producer or worker mode",
		Long: `local:    crawls the seed list in this process.
producer: pushes every seed onto the queue and exits.
worker:   consumes the queue until it stays empty.

With the memory queue, worker mode first enqueues the seeds itself so a
single host can exercise the distributed path.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", "", "crawl mode: local, producer or worker (overrides crawler.mode)")
	cmd.Flags().BoolVar(&opts.discover, "discover", false, "add search-discovered seed URLs before crawling")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "keep stores, queue and discovery state in memory")
	return cmd
}

func runCrawl(ctx context.Context, opts crawlOptions) error {
	rt, err := resolveRuntime(ctx)
	if err != nil {
		return err
	}
	cfg := rt.cfg
	if opts.mode != "" {
		cfg.Crawler.Mode = opts.mode
	}
	if opts.discover {
		cfg.Discovery.Enabled = true
	}
	if opts.dryRun {
		cfg = cfg.DryRun()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			a.Logger().Warn("failed to close services", zap.Error(cerr))
		}
	}()
	a.StartMetrics(ctx)

	logger := a.Logger()
	var seeds []string
	if a.Mode() != crawler.ModeWorker || cfg.Queue.Backend == config.BackendMemory {
		seeds, err = collectSeeds(ctx, cfg, a)
		if err != nil {
			return err
		}
		if len(seeds) == 0 {
			return errors.New("no seeds: set crawler.seeds_file, crawler.seeds or enable discovery")
		}
	}

	stats, err := runMode(ctx, a, cfg, seeds)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run %s: %w", a.Mode(), err)
	}
	logger.Info("crawl finished",
		zap.Int("seeds", len(seeds)),
		zap.Int("pages_visited", stats.PagesVisited),
		zap.Int("pages_fetched", stats.PagesFetched),
		zap.Int("leads_saved", stats.LeadsSaved),
		zap.Int("leads_rejected", stats.LeadsRejected),
		zap.Int("links_queued", stats.LinksQueued),
		zap.Int("seeds_queued", stats.SeedsQueued),
		zap.Int("messages_acked", stats.MessagesAcked),
		zap.Int("poison_messages", stats.PoisonMessages),
		zap.Bool("dry_run", opts.dryRun),
	)
	return nil
}

func runMode(ctx context.Context, a *app.App, cfg config.Config, seeds []string) (crawler.Stats, error) {
	engine := a.Engine()
	switch a.Mode() {
	case crawler.ModeLocal:
		return engine.RunLocal(ctx, seeds)
	case crawler.ModeProducer:
		return engine.RunProducer(ctx, seeds)
	case crawler.ModeWorker:
		var produced crawler.Stats
		if cfg.Queue.Backend == config.BackendMemory {
			var err error
			if produced, err = engine.RunProducer(ctx, seeds); err != nil {
				return produced, err
			}
		}
		stats, err := engine.RunWorker(ctx)
		stats.SeedsQueued = produced.SeedsQueued
		return stats, err
	default:
		return crawler.Stats{}, fmt.Errorf("unsupported mode %q", a.Mode())
	}
}

// collectSeeds merges the seeds file, inline seeds and discovered URLs,
// keeping the first occurrence of each normalized URL.
func collectSeeds(ctx context.Context, cfg config.Config, a *app.App) ([]string, error) {
	var raw []string
	if cfg.Crawler.SeedsFile != "" {
		list, err := config.ReadList(cfg.Crawler.SeedsFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			a.Logger().Warn("seeds file not found", zap.String("path", cfg.Crawler.SeedsFile))
		case err != nil:
			return nil, err
		default:
			raw = append(raw, list...)
		}
	}
	raw = append(raw, cfg.Crawler.Seeds...)

	if d := a.Discoverer(); d != nil {
		found, err := d.DiscoverSeedURLs(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover seeds: %w", err)
		}
		raw = append(raw, found...)
	}

	seen := make(map[string]struct{}, len(raw))
	seeds := make([]string, 0, len(raw))
	for _, s := range raw {
		u := crawler.NormalizeURL(s)
		if !crawler.IsHTTPURL(u) {
			a.Logger().Warn("skipping invalid seed", zap.String("seed", s))
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		seeds = append(seeds, u)
	}
	return seeds, nil
}
