package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hixichen/client-secret-rotator/pkg/config"
	"github.com/hixichen/client-secret-rotator/pkg/envstore"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
)

var (
	// Version is set at build time.
	Version = "dev"
	// GitCommit is set at build time.
	GitCommit = "unknown"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
}

// NewRootCommand creates the root command for the client-secret-rotator CLI.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "client-secret-rotator",
		Short: "client-secret-rotator keeps the Sign in with Apple client secret fresh",
		Long: `client-secret-rotator mints ES256 client secrets for Sign in with Apple, stores
them in the application's environment and rotates them before they expire.

The daemon (rotator) runs the scheduled checks. This CLI mints, inspects and
rotates secrets by hand using the same configuration.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the rotator configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newMintCommand())
	cmd.AddCommand(newInspectCommand(opts))
	cmd.AddCommand(newRotateCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// Execute executes the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// logger returns a stderr logger so command output stays parseable.
func (o *globalOptions) logger() *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openStore loads the configuration and creates its store.
func (o *globalOptions) openStore(ctx context.Context) (*config.Config, iface.Store, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := envstore.NewFactory(o.logger()).Create(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	return cfg, store, nil
}
