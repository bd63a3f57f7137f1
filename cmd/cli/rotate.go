package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/hixichen/client-secret-rotator/pkg/config"
	"github.com/hixichen/client-secret-rotator/pkg/rotation"
	"github.com/hixichen/client-secret-rotator/pkg/supervisor"
)

func newRotateCommand(global *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Run one rotation check against the configured store",
		Long: `Runs the same check as the daemon: the stored secret is replaced only when it
is missing, undecodable or within the refresh threshold of expiring. The host
service is not restarted; restart it yourself to pick up a new secret.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := global.logger()

			cfg, store, err := global.openStore(ctx)
			if err != nil {
				return err
			}

			env, err := config.LoadEnv(cfg.EnvFile)
			if err != nil {
				return err
			}
			secrets := config.LoadSecretConfig(env)
			if err := secrets.Err(); err != nil {
				return err
			}

			threshold := cfg.Rotation.RefreshThresholdDuration()
			if force {
				// Every secret is within an unbounded threshold.
				threshold = time.Duration(math.MaxInt64)
			}

			mgr := rotation.NewManager(*secrets.Config, store, supervisor.NewNoopRestarter(logger), rotation.Config{
				RefreshThreshold: threshold,
				SecretKey:        cfg.Rotation.SecretKey,
			}, logger)

			result, err := mgr.Check(ctx, rotation.ReasonManual)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !result.Rotated {
				fmt.Fprintf(out, "Secret still valid until %s, nothing to do\n", result.CurrentExpiry.UTC().Format(time.RFC3339))
				return nil
			}
			fmt.Fprintf(out, "Rotated %s in %s store: %s (expires %s)\n",
				cfg.Rotation.SecretKey,
				store.Type(),
				rotation.Preview(result.Secret.Token),
				result.Secret.ExpiresAtTime().Format(time.RFC3339),
			)
			fmt.Fprintln(out, "Restart the service to pick up the new secret.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Rotate even if the stored secret is still valid")

	return cmd
}
