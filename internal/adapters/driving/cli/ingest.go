package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driving"
	"github.com/custodia-labs/grounder/internal/logger"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [resource]",
	Short: "Ingest documentation sources into the vector index",
	Long: `Fetches, chunks and indexes the configured sources.
If a resource name is provided, only that source is ingested.
Otherwise, all configured sources are ingested.

With --watch, sources that support it are re-ingested automatically
when their files change. Runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "re-ingest sources when their files change")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}
	if appConfig == nil {
		return errors.New("configuration not loaded")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sources := appConfig.DomainSources()
	if len(args) > 0 {
		source, err := appConfig.SourceByResource(args[0])
		if err != nil {
			return err
		}
		sources = []domain.Source{source}
	}
	if len(sources) == 0 {
		return errors.New("no sources configured")
	}

	reports, err := ingestor.IngestAll(ctx, sources)
	for _, report := range reports {
		printReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestWatch {
		return watchSources(ctx, cmd, sources)
	}
	return nil
}

func printReport(cmd *cobra.Command, report *driving.IngestReport) {
	if report.Skipped {
		cmd.Printf("%-20s unchanged, skipped\n", report.Resource)
		return
	}
	cmd.Printf("%-20s %d pages, %d chunks (%d new, %d changed), %d upserted, %d deleted\n",
		report.Resource, report.Stats.Pages, report.Stats.Chunks,
		report.NewChunks, report.ChangedChunks, report.Upserted, report.Deleted)
	if report.Stats.Chunks > 0 {
		cmd.Printf("%-20s tokens: min %d, max %d, avg %.0f\n",
			"", report.Stats.MinTokens, report.Stats.MaxTokens, report.Stats.AvgTokens())
	}
}

// watchSources blocks, re-ingesting each watchable source whenever its
// connector signals a change.
func watchSources(ctx context.Context, cmd *cobra.Command, sources []domain.Source) error {
	if connectorFactory == nil {
		return errors.New("connector factory not configured")
	}

	watching := 0
	for _, source := range sources {
		conn, err := connectorFactory.Create(source)
		if err != nil {
			return fmt.Errorf("watch %s: %w", source.Resource, err)
		}

		changes, err := conn.Watch(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrUnsupportedType) {
				logger.Debug("watch: %s does not support watching, skipping", source.Resource)
				conn.Close()
				continue
			}
			conn.Close()
			return fmt.Errorf("watch %s: %w", source.Resource, err)
		}
		defer conn.Close()

		watching++
		go reingestOnChange(ctx, cmd, source, changes)
	}

	if watching == 0 {
		return errors.New("none of the selected sources support watching")
	}

	cmd.Printf("Watching %d source(s) for changes. Press Ctrl-C to stop.\n", watching)
	<-ctx.Done()
	return nil
}

func reingestOnChange(ctx context.Context, cmd *cobra.Command, source domain.Source, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			logger.Info("change detected in %s, re-ingesting", source.Resource)
			report, err := ingestor.IngestSource(ctx, source)
			if err != nil {
				logger.Warn("re-ingest %s: %v", source.Resource, err)
				continue
			}
			printReport(cmd, report)
		}
	}
}
