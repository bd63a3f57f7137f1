package rotation

import (
	"time"

	"github.com/hixichen/client-secret-rotator/pkg/clientsecret"
)

// Decide inspects secret at now. The threshold is exclusive: a secret
// expiring exactly threshold after now is still valid. The returned expiry
// is nil unless the secret carries a readable exp claim. Times are compared
// in whole epoch seconds, the resolution of the exp claim.
func Decide(secret string, now time.Time, threshold time.Duration) (Decision, *time.Time) {
	if secret == "" {
		return DecisionNoSecretPresent, nil
	}

	exp, ok := clientsecret.GetExpiryTime(secret)
	if !ok {
		return DecisionUndecodableExpiry, nil
	}

	if exp.Unix()-now.Unix() < int64(threshold/time.Second) {
		return DecisionNearingExpiry, &exp
	}
	return DecisionStillValid, &exp
}
