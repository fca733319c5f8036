package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/legal-decisions-crawler/internal/crawler"
)

// newJobsCmd lists the registered jobs with their effective output directory.
func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "Lists the available crawl jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveSettings(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "JOB\tOUTPUT DIR")
			for _, name := range crawler.JobNames() {
				job, err := crawler.Lookup(name)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\n", name, s.cfg.OutputDir(name, job.DefaultOutputDir))
			}
			return w.Flush()
		},
	}
}
