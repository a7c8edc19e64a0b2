package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"newsmonitor/internal/app"
	"newsmonitor/internal/config"
	"newsmonitor/internal/domain"
	"newsmonitor/internal/infrastructure/storage"
)

func newOnceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run the pipeline a single time and print the run report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.Application) error {
				report, err := a.RunOnce(ctx)
				printRunReport(cmd, report)
				return err
			})
		},
	}
}

func newCheckConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Load and validate configuration, then print it with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			printf(cmd, "%s\nconfiguration OK\n", out)
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show processed-article statistics from the dedup store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			store, err := storage.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context(), time.Now().Add(-24*time.Hour))
			if err != nil {
				return err
			}
			records, err := store.Recent(cmd.Context(), recent)
			if err != nil {
				return err
			}

			printf(cmd, "Total processed: %d\n", stats.Total)
			printf(cmd, "Processed in last 24h: %d\n", stats.Since)
			if !stats.LastProcessedAt.IsZero() {
				printf(cmd, "Last processed at: %s\n", stats.LastProcessedAt.Format(time.RFC3339))
			}
			for _, rec := range records {
				printf(cmd, "  %s  %-12s %s\n", rec.ProcessedAt.Format("2006-01-02 15:04"), rec.Summary, rec.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 10, "number of recent articles to list")
	return cmd
}

func printRunReport(cmd *cobra.Command, r domain.RunReport) {
	printf(cmd, "Run %s (%s)\n", r.RunID, r.Duration().Round(time.Millisecond))
	printf(cmd, "  fetched:   %d\n", r.Fetched)
	printf(cmd, "  skipped:   %d\n", r.SkippedDuplicate)
	printf(cmd, "  processed: %d\n", r.ProcessedOK)
	printf(cmd, "  failed:    %d\n", r.Failed)
	for _, f := range r.Failures {
		printf(cmd, "    [%s] %s: %s\n", f.Stage, f.URL, f.Error)
	}
}
