// Package cmd defines and implements the CLI commands for the decisions executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/legal-decisions-crawler/internal/app"
	"github.com/JakeFAU/legal-decisions-crawler/internal/config"
	"github.com/JakeFAU/legal-decisions-crawler/internal/crawler"
	"github.com/JakeFAU/legal-decisions-crawler/internal/logging"
)

// settingsKeyType is the key for storing loaded settings in the context.
type settingsKeyType string

const settingsKey settingsKeyType = "settings"

// settings are resolved once by the root command for every subcommand.
type settings struct {
	cfg    config.Config
	logger *zap.Logger
}

// App defines the application interface that commands will use.
// This allows us to inject a mock app during tests.
type App interface {
	Crawl(ctx context.Context, job string) (crawler.Stats, error)
	Close()
}

// newApp is the application factory. It's a variable so we can
// replace it with a mock factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "Crawls court decisions published on gesetze-bayern.de.",
		Long: `decisions walks the decision search listing of gesetze-bayern.de, follows
its pagination and writes one JSON file per decision. Records can additionally
be indexed in Postgres and announced on Pub/Sub.`,
		SilenceUsage: true,

		// Config and logger are loaded before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), settingsKey, &settings{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newJobsCmd())
	return cmd
}

func resolveSettings(ctx context.Context) (*settings, error) {
	s, ok := ctx.Value(settingsKey).(*settings)
	if !ok || s == nil {
		return nil, errors.New("configuration not loaded")
	}
	return s, nil
}

// Execute runs the CLI until ctx is canceled or the command returns.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
