// Package cmd defines the leadcrawler CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/leadcrawler/internal/app"
	"github.com/JakeFAU/leadcrawler/internal/config"
	"github.com/JakeFAU/leadcrawler/internal/logging"
)

// runtimeKeyType is the key for storing the loaded runtime in the context.
type runtimeKeyType struct{}

// runtime carries what every subcommand needs before building services.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// newApp builds the service container. It is a variable so tests can swap
// in a container with pre-built collaborators.
var newApp = app.New

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "leadcrawler",
		Short: "Discovers and qualifies music-industry contact leads by crawling the web.",
		Long: `leadcrawler visits seed sites and search-discovered URLs, extracts
contact routes (emails, contact forms), scores the page owner's role and
persists qualifying leads with a draft outreach message.

Runs locally in one process, or distributed as one producer and many
workers sharing a Pub/Sub queue.`,
		SilenceUsage: true,

		// Loads configuration and the logger; subcommands apply their flags
		// to the config before building services.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.Read(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKeyType{}, &runtime{cfg: cfg, logger: logger}))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, err := resolveRuntime(cmd.Context()); err == nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env vars prefixed LEADBOT_ override it")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	if ctx == nil {
		return nil, errors.New("configuration not loaded")
	}
	rt, ok := ctx.Value(runtimeKeyType{}).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
