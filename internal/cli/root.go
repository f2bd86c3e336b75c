// Package cli implements the opas-admin command line tool.
package cli

import (
	"context"
	"encoding/json"
	"io"

	"opas-admin-workers/internal/app"
	"opas-admin-workers/internal/common/config"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/observability"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

// NewRootCommand returns the opas-admin command with every subcommand.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "opas-admin",
		Short:         "OPAS seller administration tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (default: configs/config.yaml lookup)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newBulkApproveCommand(opts),
		newRejectCommand(opts),
		newSuspendCommand(opts),
		newExportCommand(opts),
		newRegistryCommand(),
	)
	return root
}

func (o *rootOptions) logger() logger.Logger {
	return logger.NewZapAdapter(logger.NewWithOptions(logger.Options{
		Level:  o.logLevel,
		Format: "console",
		Output: "stderr",
	}))
}

func (o *rootOptions) loadApp(ctx context.Context) (*app.App, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFromFile(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, o.logger(), observability.NewNoop())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
