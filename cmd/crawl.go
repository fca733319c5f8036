package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/legal-decisions-crawler/internal/config"
	"github.com/JakeFAU/legal-decisions-crawler/internal/crawler"
)

type crawlOptions struct {
	outputDir string
	maxPages  int
}

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl <job>",
		Short: "Runs one crawl job",
		Long: `Runs a crawl job to completion and prints its counters as JSON.

Jobs:
  ` + strings.Join(crawler.JobNames(), "\n  "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: crawler.JobNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "override the job's output directory")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", -1, "stop after this many listing pages (0 = unlimited)")
	return cmd
}

func runCrawl(cmd *cobra.Command, jobName string, opts *crawlOptions) error {
	s, err := resolveSettings(cmd.Context())
	if err != nil {
		return err
	}
	if _, err := crawler.Lookup(jobName); err != nil {
		return err
	}

	cfg := s.cfg
	if opts.outputDir != "" {
		jobs := make(map[string]config.JobConfig, len(cfg.Jobs)+1)
		for k, v := range cfg.Jobs {
			jobs[k] = v
		}
		jobs[jobName] = config.JobConfig{OutputDir: opts.outputDir}
		cfg.Jobs = jobs
	}
	if opts.maxPages >= 0 {
		cfg.Crawler.MaxListingPages = opts.maxPages
	}

	appInstance, err := newApp(cmd.Context(), cfg, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer appInstance.Close()

	stats, runErr := appInstance.Crawl(cmd.Context(), jobName)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("run crawler: %w", runErr)
	}
	s.logger.Info("crawl command finished", zap.String("job", jobName), zap.Int64("saved", stats.Saved))
	return nil
}
