package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against the indexed documentation",
	Long: `Runs the full query pipeline: retrieves the most relevant chunks,
assembles a grounded prompt and prints the answer with its citations.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerer == nil {
		return errors.New("answer service not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	answer, err := answerer.Ask(ctx, question)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(answer.Text)

	if len(answer.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, citation := range answer.Citations {
			if citation.URL != "" {
				cmd.Printf("  [%d] %s (%s)\n", citation.DocNum, citation.Title, citation.URL)
			} else {
				cmd.Printf("  [%d] %s\n", citation.DocNum, citation.Title)
			}
		}
	}
	return nil
}
