// Package cli implements the command-line interface. Commands talk to
// the core exclusively through the driving ports; the composition root
// provides a setup function that wires services once flags are parsed.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/grounder/internal/config"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
	"github.com/custodia-labs/grounder/internal/core/ports/driving"
	"github.com/custodia-labs/grounder/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Injected services.
var (
	ingestor         driving.Ingestor
	answerer         driving.Answerer
	vectorStore      driven.VectorStore
	connectorFactory driven.ConnectorFactory
	appConfig        *config.Config
)

// setup wires services from the config file path. Installed by the
// composition root; nil in tests that inject services directly.
var setup func(configPath string) (Services, error)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "grounder",
	Short: "Grounded question answering over your own documentation",
	Long: `Grounder ingests documentation sources into a hybrid vector index
and answers questions against them, with every claim cited back to the
document it came from.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if setup == nil || cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		services, err := setup(configPath)
		if err != nil {
			return err
		}
		SetServices(services)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the config file")
}

// Services carries everything the commands need.
type Services struct {
	Ingestor         driving.Ingestor
	Answerer         driving.Answerer
	VectorStore      driven.VectorStore
	ConnectorFactory driven.ConnectorFactory
	Config           *config.Config
	Version          string
}

// SetServices injects the wired services.
func SetServices(s Services) {
	ingestor = s.Ingestor
	answerer = s.Answerer
	vectorStore = s.VectorStore
	connectorFactory = s.ConnectorFactory
	appConfig = s.Config
	if s.Version != "" {
		version = s.Version
	}
}

// SetSetup installs the service wiring function called before each
// command runs.
func SetSetup(fn func(configPath string) (Services, error)) {
	setup = fn
}

// Execute runs the CLI. The context cancels long-running commands such
// as ingest --watch.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
