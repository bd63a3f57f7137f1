// Package supervisor restarts the process so an external supervisor picks
// up the rotated environment.
package supervisor

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// Restarter schedules a process restart.
type Restarter interface {
	// Restart arranges for the process to exit after its configured delay.
	// It returns immediately.
	Restart(reason string)
}

// ExitRestarter exits the process with status 0 after a delay. The delay lets
// in-flight log lines and responses drain; pm2, systemd, docker or Kubernetes
// is expected to start the process again.
type ExitRestarter struct {
	delay    time.Duration
	logger   *slog.Logger
	exitFunc func(code int)
	after    func(d time.Duration, f func()) *time.Timer

	once sync.Once
}

// Ensure ExitRestarter implements Restarter interface.
var _ Restarter = (*ExitRestarter)(nil)

// NewExitRestarter creates an ExitRestarter.
func NewExitRestarter(delay time.Duration, logger *slog.Logger) *ExitRestarter {
	return &ExitRestarter{
		delay:    delay,
		logger:   logger,
		exitFunc: os.Exit,
		after:    time.AfterFunc,
	}
}

// SetExitFunc replaces os.Exit (for testing).
func (r *ExitRestarter) SetExitFunc(fn func(code int)) {
	r.exitFunc = fn
}

// Restart schedules the exit. Only the first call has any effect.
func (r *ExitRestarter) Restart(reason string) {
	r.once.Do(func() {
		r.logger.Info("Scheduling process restart",
			"reason", reason,
			"delay", r.delay.String(),
		)
		r.after(r.delay, func() {
			r.logger.Info("Exiting for restart", "reason", reason)
			r.exitFunc(0)
		})
	})
}

// NoopRestarter only logs. It is used when restarts are disabled and by the
// one-shot CLI.
type NoopRestarter struct {
	logger *slog.Logger
}

// Ensure NoopRestarter implements Restarter interface.
var _ Restarter = (*NoopRestarter)(nil)

// NewNoopRestarter creates a NoopRestarter.
func NewNoopRestarter(logger *slog.Logger) *NoopRestarter {
	return &NoopRestarter{logger: logger}
}

// Restart logs that a restart is needed.
func (r *NoopRestarter) Restart(reason string) {
	r.logger.Warn("Restart required to load the new secret; automatic restart is disabled", "reason", reason)
}
