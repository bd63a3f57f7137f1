package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hixichen/client-secret-rotator/pkg/clientsecret"
	"github.com/hixichen/client-secret-rotator/pkg/config"
	"github.com/hixichen/client-secret-rotator/pkg/constants"
)

type mintOptions struct {
	envFile  string
	teamID   string
	clientID string
	keyID    string
	keyFile  string
	lifetime int64
	output   string
}

// mintOutput is the json output of the mint command.
type mintOutput struct {
	Token     string    `json:"token"`
	KeyID     string    `json:"keyId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newMintCommand() *cobra.Command {
	opts := &mintOptions{}

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a new client secret and print it",
		Long: `Mints a new ES256 client secret from the Apple credentials in the environment.
Flags override the corresponding AUTH_APPLE_* variables. The secret is printed
and not stored anywhere.`,
		Example: `  # Mint from the environment
  client-secret-rotator mint

  # Mint from a downloaded key
  client-secret-rotator mint --team-id ABCDE12345 --client-id com.example.web \
    --key-id XYZ987654 --key-file AuthKey_XYZ987654.p8 --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMint(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "Dotenv file read under the process environment")
	cmd.Flags().StringVar(&opts.teamID, "team-id", "", "Apple developer team ID (iss)")
	cmd.Flags().StringVar(&opts.clientID, "client-id", "", "Services ID the secret is for (sub)")
	cmd.Flags().StringVar(&opts.keyID, "key-id", "", "Key ID of the signing key (kid)")
	cmd.Flags().StringVar(&opts.keyFile, "key-file", "", "Path to the .p8 private key")
	cmd.Flags().Int64Var(&opts.lifetime, "lifetime", 0, "Lifetime in seconds, capped at the Apple maximum")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format (text, json)")

	return cmd
}

func runMint(cmd *cobra.Command, opts *mintOptions) error {
	env, err := config.LoadEnv(opts.envFile)
	if err != nil {
		return err
	}
	if err := opts.apply(env); err != nil {
		return err
	}

	secrets := config.LoadSecretConfig(env)
	for _, w := range secrets.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", w)
	}
	if err := secrets.Err(); err != nil {
		return err
	}

	minted, err := clientsecret.NewMinter().Mint(*secrets.Config)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch opts.output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(mintOutput{
			Token:     minted.Token,
			KeyID:     secrets.Config.KeyID,
			IssuedAt:  time.Unix(minted.IssuedAt, 0).UTC(),
			ExpiresAt: minted.ExpiresAtTime(),
		})
	case "text":
		fmt.Fprintln(out, minted.Token)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", opts.output)
	}
}

// apply writes flag values over env.
func (o *mintOptions) apply(env config.Env) error {
	set := func(key, value string) {
		if value != "" {
			env[key] = value
		}
	}
	set(constants.EnvTeamID, o.teamID)
	set(constants.EnvClientID, o.clientID)
	set(constants.EnvKeyID, o.keyID)

	if o.keyFile != "" {
		data, err := os.ReadFile(o.keyFile)
		if err != nil {
			return fmt.Errorf("failed to read key file: %w", err)
		}
		env[constants.EnvPrivateKey] = string(data)
	}
	if o.lifetime != 0 {
		env[constants.EnvLifetimeSeconds] = strconv.FormatInt(o.lifetime, 10)
	}
	return nil
}
