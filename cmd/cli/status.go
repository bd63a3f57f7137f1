package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hixichen/client-secret-rotator/pkg/config"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	"github.com/hixichen/client-secret-rotator/pkg/rotation"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored client secret status",
		Long:  `Shows the configured store, whether it is reachable, and the expiry and rotation decision of the stored client secret.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := global.openStore(cmd.Context())
			if err != nil {
				return err
			}
			info := GetStatus(cmd.Context(), cfg, store, time.Now())
			PrintStatus(cmd.OutOrStdout(), info, time.Now())
			return nil
		},
	}
	return cmd
}

// StatusInfo holds status information for display.
type StatusInfo struct {
	// Store status
	StoreType    iface.StoreType
	StoreHealthy bool
	StoreError   string

	// Secret status
	SecretKey     string
	SecretPreview string
	ExpiresAt     *time.Time
	Decision      rotation.Decision
	Threshold     time.Duration
}

// GetStatus retrieves the current status. Store errors are recorded in the
// result rather than returned so partial status can still be printed.
func GetStatus(ctx context.Context, cfg *config.Config, store iface.Store, now time.Time) *StatusInfo {
	info := &StatusInfo{
		StoreType: store.Type(),
		SecretKey: cfg.Rotation.SecretKey,
		Threshold: cfg.Rotation.RefreshThresholdDuration(),
	}

	if err := store.HealthCheck(ctx); err != nil {
		info.StoreError = err.Error()
		return info
	}

	env, err := store.Load(ctx)
	if err != nil {
		info.StoreError = err.Error()
		return info
	}
	info.StoreHealthy = true

	secret := env[info.SecretKey]
	if secret != "" {
		info.SecretPreview = rotation.Preview(secret)
	}
	info.Decision, info.ExpiresAt = rotation.Decide(secret, now, info.Threshold)
	return info
}

// PrintStatus prints the status in a formatted way.
func PrintStatus(w io.Writer, info *StatusInfo, now time.Time) {
	fmt.Fprintln(w, "Client Secret Status")
	fmt.Fprintln(w, "====================")
	fmt.Fprintln(w)

	storeStatus := "reachable"
	if !info.StoreHealthy {
		storeStatus = fmt.Sprintf("error: %s", info.StoreError)
	}
	fmt.Fprintf(w, "Store:       %s (%s)\n", info.StoreType, storeStatus)
	fmt.Fprintf(w, "Key:         %s\n", info.SecretKey)

	if !info.StoreHealthy {
		fmt.Fprintln(w)
		return
	}

	if info.SecretPreview == "" {
		fmt.Fprintln(w, "Secret:      not set")
	} else {
		fmt.Fprintf(w, "Secret:      %s\n", info.SecretPreview)
	}
	if info.ExpiresAt != nil {
		fmt.Fprintf(w, "Expires:     %s (%s)\n", info.ExpiresAt.UTC().Format(time.RFC3339), formatRelative(*info.ExpiresAt, now))
	}
	fmt.Fprintf(w, "Threshold:   %s\n", info.Threshold)

	rotationStatus := "not needed"
	if info.Decision.NeedsRotation() {
		rotationStatus = fmt.Sprintf("due (%s)", info.Decision)
	}
	fmt.Fprintf(w, "Rotation:    %s\n", rotationStatus)
	fmt.Fprintln(w)
}

// formatRelative formats t as "in 3 days" or "2 hours ago".
func formatRelative(t, now time.Time) string {
	d := t.Sub(now)
	if d < 0 {
		return formatDuration(-d) + " ago"
	}
	return "in " + formatDuration(d)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	if d < time.Hour {
		return plural(int(d.Minutes()), "minute")
	}
	if d < 24*time.Hour {
		return plural(int(d.Hours()), "hour")
	}
	return plural(int(d.Hours()/24), "day")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
