// Command plantdoc serves the plant analysis API and runs analyses, history
// maintenance and migrations from the command line.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"plantdoc/internal/bootstrap"
	"plantdoc/internal/shared/config"
	"plantdoc/internal/shared/telemetry"
)

// version is set at build time with -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "plantdoc",
		Short: "Plant identification and health diagnosis",
		Long: `plantdoc identifies plants from photos, diagnoses pests and diseases,
suggests treatments and keeps an analysis history.

Configuration comes from PLANTDOC_CONFIG (or ./plantdoc.yaml) and the
environment, e.g. PLANTNET_API_KEY, KINDWISE_API_KEY, HISTORY_BACKEND.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			if cmd.Name() == "serve" {
				telemetry.Configure(cfg.LogLevel)
			} else {
				telemetry.ConfigureTo(cmd.ErrOrStderr(), cfg.LogLevel)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			telemetry.Sync()
		},
	}
	root.AddCommand(
		c.serveCmd(),
		c.analyzeCmd(),
		c.identifyCmd(),
		c.historyCmd(),
		c.treatmentCmd(),
		c.migrateCmd(),
	)
	return root
}

// app builds the shared dependencies for one command run.
func (c *cli) app(ctx context.Context) (*bootstrap.App, error) {
	return bootstrap.Build(ctx, c.cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
