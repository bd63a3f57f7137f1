package rotation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hixichen/client-secret-rotator/pkg/clientsecret"
	"github.com/hixichen/client-secret-rotator/pkg/constants"
	"github.com/hixichen/client-secret-rotator/pkg/envstore/iface"
	rerrors "github.com/hixichen/client-secret-rotator/pkg/errors"
	"github.com/hixichen/client-secret-rotator/pkg/lock"
	"github.com/hixichen/client-secret-rotator/pkg/metrics"
	"github.com/hixichen/client-secret-rotator/pkg/notify"
	"github.com/hixichen/client-secret-rotator/pkg/supervisor"
)

const component = constants.ComponentNameRotation

// Minter signs client secrets.
type Minter interface {
	Mint(cfg clientsecret.Config) (*clientsecret.MintedSecret, error)
}

// Manager runs rotation checks. At most one mint and persist cycle runs at
// a time in this process; concurrent callers share the in-flight result.
type Manager struct {
	secret    clientsecret.Config
	store     iface.Store
	restarter supervisor.Restarter
	config    Config
	logger    *slog.Logger

	minter   Minter
	locker   lock.Locker
	notifier notify.Notifier
	metrics  *metrics.Metrics
	nowFunc  func() time.Time // For testing

	group singleflight.Group
}

// NewManager creates a Manager for secret, persisting into store.
func NewManager(secret clientsecret.Config, store iface.Store, restarter supervisor.Restarter, cfg Config, logger *slog.Logger) *Manager {
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = DefaultRefreshThreshold
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = constants.DefaultSecretKey
	}
	return &Manager{
		secret:    secret,
		store:     store,
		restarter: restarter,
		config:    cfg,
		logger:    logger.With("component", component),
		minter:    clientsecret.NewMinter(),
		nowFunc:   time.Now,
	}
}

// SetTimeFunc sets the time function (for testing).
func (m *Manager) SetTimeFunc(f func() time.Time) {
	m.nowFunc = f
}

// SetMinter replaces the default minter.
func (m *Manager) SetMinter(minter Minter) {
	m.minter = minter
}

// SetLocker adds a cross-process lock around the mint and persist cycle.
func (m *Manager) SetLocker(l lock.Locker) {
	m.locker = l
}

// SetNotifier sets where rotation events are sent.
func (m *Manager) SetNotifier(n notify.Notifier) {
	m.notifier = n
}

// SetMetrics sets the metrics sink.
func (m *Manager) SetMetrics(mt *metrics.Metrics) {
	m.metrics = mt
}

// Config returns the rotation policy in use.
func (m *Manager) Config() Config {
	return m.config
}

// Check inspects the stored secret and rotates it when needed. After a
// successful persist the restarter is signalled. Any failure leaves the
// stored secret untouched and is returned as a typed error.
func (m *Manager) Check(ctx context.Context, reason string) (*Result, error) {
	v, err, shared := m.group.Do("check", func() (interface{}, error) {
		return m.check(ctx, reason)
	})
	if shared {
		m.logger.Debug("Joined in-flight rotation check", "reason", reason)
	}
	result, _ := v.(*Result)
	return result, err
}

func (m *Manager) check(ctx context.Context, reason string) (*Result, error) {
	result := &Result{
		RunID:  uuid.NewString(),
		Reason: reason,
	}
	logger := m.logger.With("runId", result.RunID, "reason", reason)

	decision, exp, err := m.inspect(ctx)
	if err != nil {
		logger.Error("Failed to read stored client secret", "store", m.store.Type(), "error", err)
		return result, err
	}
	result.Decision = decision
	result.CurrentExpiry = exp
	m.metrics.RecordCheck(string(decision))
	if exp != nil {
		m.metrics.SetSecretExpiry(*exp)
	}

	if !decision.NeedsRotation() {
		logger.Info("Client secret still valid",
			"expiresAt", exp.UTC().Format(time.RFC3339),
			"remaining", exp.Sub(m.nowFunc()).Round(time.Second).String(),
		)
		return result, nil
	}

	logger.Info("Client secret needs rotation", "decision", decision)

	if m.locker != nil {
		lease, err := m.locker.Acquire(ctx)
		if errors.Is(err, lock.ErrHeld) {
			logger.Info("Rotation lock held by another owner, skipping")
			m.metrics.RecordRotation(metrics.StatusLocked, m.nowFunc())
			result.Skipped = true
			return result, nil
		}
		if err != nil {
			logger.Error("Failed to acquire rotation lock", "error", err)
			return result, rerrors.NewInternalError(component, "failed to acquire rotation lock", err)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("Failed to release rotation lock", "error", err)
			}
		}()

		// Another owner may have rotated while we waited for the lock.
		decision, exp, err = m.inspect(ctx)
		if err != nil {
			logger.Error("Failed to re-read stored client secret", "error", err)
			return result, err
		}
		result.Decision = decision
		result.CurrentExpiry = exp
		if !decision.NeedsRotation() {
			logger.Info("Client secret was rotated by another owner", "expiresAt", exp.UTC().Format(time.RFC3339))
			return result, nil
		}
	}

	start := time.Now()
	minted, err := m.minter.Mint(m.secret)
	m.metrics.ObserveMint(time.Since(start))
	if err != nil {
		m.metrics.RecordRotation(metrics.StatusMintError, m.nowFunc())
		logger.Error("Failed to mint client secret", "code", rerrors.GetCode(err), "error", err)
		return result, err
	}

	if err := m.store.Set(ctx, m.config.SecretKey, minted.Token); err != nil {
		m.metrics.RecordRotation(metrics.StatusPersistError, m.nowFunc())
		logger.Error("Failed to persist client secret, keeping current secret",
			"store", m.store.Type(),
			"error", err,
		)
		if _, ok := rerrors.AsRotatorError(err); !ok {
			err = rerrors.NewPersistenceError(component, "failed to persist client secret", err)
		}
		return result, err
	}

	now := m.nowFunc()
	result.Rotated = true
	result.Secret = minted
	m.metrics.RecordRotation(metrics.StatusSuccess, now)
	m.metrics.SetSecretExpiry(minted.ExpiresAtTime())

	logger.Info("Client secret rotated",
		"secret", Preview(minted.Token),
		"expiresAt", minted.ExpiresAtTime().Format(time.RFC3339),
		"store", m.store.Type(),
		"key", m.config.SecretKey,
	)

	m.notify(ctx, logger, result, now)
	m.restarter.Restart("client secret rotated")
	return result, nil
}

// inspect loads the store and decides on the stored secret.
func (m *Manager) inspect(ctx context.Context) (Decision, *time.Time, error) {
	env, err := m.store.Load(ctx)
	if err != nil {
		if _, ok := rerrors.AsRotatorError(err); !ok {
			err = rerrors.NewPersistenceError(component, "failed to load environment store", err)
		}
		return "", nil, err
	}
	decision, exp := Decide(env[m.config.SecretKey], m.nowFunc(), m.config.RefreshThreshold)
	return decision, exp, nil
}

// notify emits the rotation event. Delivery failures are logged only since
// the secret has already been persisted.
func (m *Manager) notify(ctx context.Context, logger *slog.Logger, result *Result, now time.Time) {
	if m.notifier == nil {
		return
	}
	event := notify.Event{
		ID:                result.RunID,
		Type:              notify.EventTypeRotated,
		OccurredAt:        now.UTC(),
		Reason:            result.Reason,
		Decision:          string(result.Decision),
		Store:             string(m.store.Type()),
		TeamID:            m.secret.TeamID,
		ClientID:          m.secret.ClientID,
		KeyID:             m.secret.KeyID,
		IssuedAt:          time.Unix(result.Secret.IssuedAt, 0).UTC(),
		ExpiresAt:         result.Secret.ExpiresAtTime(),
		PreviousExpiresAt: result.CurrentExpiry,
	}
	if err := m.notifier.Notify(ctx, event); err != nil {
		logger.Warn("Failed to deliver rotation event", "error", err)
	}
}
