package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hixichen/client-secret-rotator/pkg/clientsecret"
	"github.com/hixichen/client-secret-rotator/pkg/rotation"
)

// inspectOutput is the json output of the inspect command.
type inspectOutput struct {
	Claims    *clientsecret.Claims `json:"claims"`
	ExpiresAt *time.Time           `json:"expiresAt,omitempty"`
	Decision  rotation.Decision    `json:"decision"`
}

func newInspectCommand(global *globalOptions) *cobra.Command {
	var (
		threshold time.Duration
		output    string
	)

	cmd := &cobra.Command{
		Use:   "inspect [TOKEN]",
		Short: "Decode a client secret and show whether it needs rotation",
		Long: `Decodes the claims of a client secret without verifying its signature and
reports the rotation decision. Without TOKEN the secret is read from the
configured store.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				cfg, store, err := global.openStore(cmd.Context())
				if err != nil {
					return err
				}
				env, err := store.Load(cmd.Context())
				if err != nil {
					return err
				}
				token = env[cfg.Rotation.SecretKey]
				if !cmd.Flags().Changed("threshold") {
					threshold = cfg.Rotation.RefreshThresholdDuration()
				}
			}

			decision, exp := rotation.Decide(token, time.Now(), threshold)
			result := inspectOutput{
				Claims:    clientsecret.DecodeClaims(token),
				ExpiresAt: exp,
				Decision:  decision,
			}

			out := cmd.OutOrStdout()
			switch output {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			case "text":
				printInspect(cmd, result)
				return nil
			default:
				return fmt.Errorf("unsupported output format: %s", output)
			}
		},
	}

	cmd.Flags().DurationVar(&threshold, "threshold", rotation.DefaultRefreshThreshold, "Refresh threshold used for the decision")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	return cmd
}

func printInspect(cmd *cobra.Command, r inspectOutput) {
	out := cmd.OutOrStdout()
	if r.Claims == nil {
		fmt.Fprintln(out, "Claims:     (undecodable)")
	} else {
		fmt.Fprintf(out, "Issuer:     %s\n", r.Claims.Issuer)
		fmt.Fprintf(out, "Subject:    %s\n", r.Claims.Subject)
		fmt.Fprintf(out, "Audience:   %s\n", r.Claims.Audience)
		if r.Claims.IssuedAt != nil {
			fmt.Fprintf(out, "Issued At:  %s\n", time.Unix(*r.Claims.IssuedAt, 0).UTC().Format(time.RFC3339))
		}
	}
	if r.ExpiresAt != nil {
		fmt.Fprintf(out, "Expires At: %s (%s)\n", r.ExpiresAt.UTC().Format(time.RFC3339), formatRelative(*r.ExpiresAt, time.Now()))
	}
	fmt.Fprintf(out, "Decision:   %s\n", r.Decision)
}
