// Package rotation decides when the stored client secret must be replaced
// and runs the mint, persist and restart cycle.
package rotation

import (
	"time"

	"github.com/hixichen/client-secret-rotator/pkg/clientsecret"
	"github.com/hixichen/client-secret-rotator/pkg/constants"
)

// Decision is the outcome of inspecting the stored secret.
type Decision string

const (
	// DecisionNoSecretPresent means nothing is stored under the secret key.
	DecisionNoSecretPresent Decision = "no_secret_present"
	// DecisionUndecodableExpiry means the stored value has no readable exp claim.
	DecisionUndecodableExpiry Decision = "undecodable_expiry"
	// DecisionNearingExpiry means the secret expires within the refresh threshold.
	DecisionNearingExpiry Decision = "nearing_expiry"
	// DecisionStillValid means no action is needed.
	DecisionStillValid Decision = "still_valid"
)

// NeedsRotation reports whether d requires a new secret.
func (d Decision) NeedsRotation() bool {
	return d != DecisionStillValid
}

// Reasons passed to Manager.Check.
const (
	ReasonStartup = "startup"
	ReasonDaily   = "daily"
	ReasonManual  = "manual"
)

// DefaultRefreshThreshold rotates secrets with less than a week left.
const DefaultRefreshThreshold = 7 * 24 * time.Hour

// Config holds configuration for the rotation manager.
type Config struct {
	// RefreshThreshold rotates secrets expiring sooner than this
	RefreshThreshold time.Duration
	// SecretKey is the store key holding the client secret
	SecretKey string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RefreshThreshold: DefaultRefreshThreshold,
		SecretKey:        constants.DefaultSecretKey,
	}
}

// Result describes one check.
type Result struct {
	// RunID correlates log lines and the emitted event
	RunID string
	// Reason is what triggered the check
	Reason string
	// Decision is the outcome of inspecting the stored secret
	Decision Decision
	// CurrentExpiry is the expiry of the stored secret, when readable
	CurrentExpiry *time.Time
	// Rotated is true once a new secret has been persisted
	Rotated bool
	// Skipped is true when another owner held the rotation lock
	Skipped bool
	// Secret is the newly minted secret when Rotated
	Secret *clientsecret.MintedSecret
}

// Preview returns the first ten characters of a secret for logging.
func Preview(secret string) string {
	const n = 10
	if len(secret) <= n {
		return secret + "..."
	}
	return secret[:n] + "..."
}
