package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/leadcrawler/internal/config"
	"github.com/JakeFAU/leadcrawler/internal/crawler"
)

// newDiscoverCmd creates the 'discover' subcommand.
func newDiscoverCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Runs one discovery pass and prints the seed URLs it found",
		Long: `Issues the next batch of search queries against the configured
providers, advances the query cursor and prints one URL per line. Provider
quotas are consumed exactly as during 'crawl --discover'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd.Context(), cmd.OutOrStdout(), dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep discovery state in memory")
	return cmd
}

func runDiscover(ctx context.Context, out io.Writer, dryRun bool) error {
	rt, err := resolveRuntime(ctx)
	if err != nil {
		return err
	}
	cfg := rt.cfg
	cfg.Discovery.Enabled = true
	// Only discovery state is touched; the crawl backends stay in memory.
	cfg.Crawler.Mode = string(crawler.ModeLocal)
	cfg.Storage.Backend = config.BackendMemory
	cfg.Storage.PageBackend = config.BackendMemory
	cfg.Export.Enabled = false
	if dryRun {
		cfg = cfg.DryRun()
		cfg.Discovery.StateBackend = config.BackendMemory
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			a.Logger().Warn("failed to close services", zap.Error(cerr))
		}
	}()

	urls, err := a.Discoverer().DiscoverSeedURLs(ctx)
	if err != nil {
		return fmt.Errorf("discover seeds: %w", err)
	}
	for _, u := range urls {
		if _, err := fmt.Fprintln(out, u); err != nil {
			return err
		}
	}
	return nil
}
