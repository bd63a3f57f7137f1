// Package controller wires the rotation manager into the scheduler and the
// health registry.
package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/hixichen/client-secret-rotator/pkg/config"
	"github.com/hixichen/client-secret-rotator/pkg/constants"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	rerrors "github.com/hixichen/client-secret-rotator/pkg/errors"
	"github.com/hixichen/client-secret-rotator/pkg/health"
	"github.com/hixichen/client-secret-rotator/pkg/rotation"
	"github.com/hixichen/client-secret-rotator/pkg/scheduler"
)

// Checker runs one rotation check.
type Checker interface {
	Check(ctx context.Context, reason string) (*rotation.Result, error)
}

// Config holds configuration for the hook.
type Config struct {
	// DailyAt is the local time of the scheduled check
	DailyAt scheduler.TimeOfDay
	// RunAtStartup runs a check once the scheduler starts
	RunAtStartup bool
}

// Registrar is the part of the scheduler the hook needs.
type Registrar interface {
	RegisterAtStartup(name string, task scheduler.Task)
	RegisterDaily(name string, at scheduler.TimeOfDay, task scheduler.Task)
}

// Setup registers the rotation tasks. When the Apple credentials are
// incomplete nothing is registered and the missing variables are logged;
// the host service keeps running without rotation. Setup reports whether
// the hook was enabled.
func Setup(reg Registrar, secrets config.SecretConfigResult, checker Checker, cfg Config, logger *slog.Logger) bool {
	logger = logger.With("hook", constants.HookName)

	for _, w := range secrets.Warnings {
		logger.Warn(w)
	}

	if !secrets.Enabled() {
		logger.Warn("Apple client secret rotation disabled, missing configuration",
			"missing", secrets.MissingEnv(),
		)
		return false
	}

	if cfg.RunAtStartup {
		reg.RegisterAtStartup(constants.HookName, runTask(checker, rotation.ReasonStartup, logger))
	}
	reg.RegisterDaily(constants.HookName, cfg.DailyAt, runTask(checker, rotation.ReasonDaily, logger))

	logger.Info("Apple client secret rotation enabled",
		"teamId", secrets.Config.TeamID,
		"clientId", secrets.Config.ClientID,
		"keyId", secrets.Config.KeyID,
		"dailyAt", cfg.DailyAt.String(),
		"runAtStartup", cfg.RunAtStartup,
	)
	return true
}

// runTask adapts a Checker to a scheduler task. Failures are logged and the
// next scheduled run tries again.
func runTask(checker Checker, reason string, logger *slog.Logger) scheduler.Task {
	return func(ctx context.Context) {
		result, err := checker.Check(ctx, reason)
		if err != nil {
			logger.Error("Client secret rotation check failed",
				"reason", reason,
				"code", rerrors.GetCode(err),
				"retryable", rerrors.IsRetryable(err),
				"error", err,
			)
			return
		}
		logger.Debug("Client secret rotation check finished",
			"reason", reason,
			"runId", result.RunID,
			"decision", result.Decision,
			"rotated", result.Rotated,
			"skipped", result.Skipped,
		)
	}
}

// RegisterHealthChecks registers the store and stored secret checks.
func RegisterHealthChecks(h *health.Health, store iface.Store, secretKey string) {
	h.Register("store", health.StoreChecker(store))
	h.Register("secret", health.SecretChecker(store, secretKey, time.Now))
}
