package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector counts for the active namespace",
	Long: `Prints the total number of indexed vectors in the active namespace
and a per-source breakdown.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if vectorStore == nil {
		return errors.New("vector store not configured")
	}
	if appConfig == nil {
		return errors.New("configuration not loaded")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	namespace := appConfig.Namespace
	total, err := vectorStore.Stats(ctx, namespace, nil)
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	cmd.Printf("Namespace %s: %d vectors\n", namespace, total)

	for _, source := range appConfig.DomainSources() {
		count, err := vectorStore.Stats(ctx, namespace, &driven.Filter{Resource: source.Resource})
		if err != nil {
			return fmt.Errorf("stats for %s: %w", source.Resource, err)
		}
		cmd.Printf("  %-20s %6d vectors (%s)\n", source.Resource, count, source.DocType)
	}
	return nil
}
