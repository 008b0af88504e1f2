package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/comitanigiacomo/kanso-care-engine/internal/app"
	"github.com/comitanigiacomo/kanso-care-engine/internal/config"
	"github.com/comitanigiacomo/kanso-care-engine/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format   string
	LogLevel string
}

var validFormats = []string{"text", "json"}

// NewRootCommand creates the operator CLI. Connection settings come from the same
// environment variables as the API server.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "carectl",
		Short: "Operator tooling for the Kanso care engine",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewMaterializeCommand(opts))
	cmd.AddCommand(NewPolicyCommand(opts))

	return cmd
}

// bootstrap loads configuration and connects to the stores.
func bootstrap(ctx context.Context, opts *RootOptions) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.AutoMigrate = false

	log, err := logger.New(logger.Options{Level: opts.LogLevel})
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	a.Logger.Debug("carectl_bootstrapped", zap.String("reference_timezone", a.Clock.Location().String()))
	return a, nil
}
