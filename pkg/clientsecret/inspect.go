package clientsecret

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/hixichen/client-secret-rotator/pkg/base64url"
)

// DecodeClaims returns the claims segment of token without verifying the
// signature. It returns nil for anything it cannot read. Claims of an
// unexpected type are dropped individually.
func DecodeClaims(token string) *Claims {
	if token == "" {
		return nil
	}
	parts := strings.Split(token, ".")
	if len(parts) < 2 || parts[1] == "" {
		return nil
	}

	payload, err := base64url.Decode(parts[1])
	if err != nil {
		return nil
	}

	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil
	}

	claims := &Claims{}
	claims.Issuer = stringClaim(fields["iss"])
	claims.Audience = stringClaim(fields["aud"])
	claims.Subject = stringClaim(fields["sub"])
	claims.IssuedAt = numericClaim(fields["iat"])
	claims.ExpiresAt = numericClaim(fields["exp"])
	return claims
}

// GetExpiry returns the exp claim of token. ok is false when the token cannot
// be decoded or exp is missing, non-numeric or zero.
func GetExpiry(token string) (exp int64, ok bool) {
	claims := DecodeClaims(token)
	if claims == nil || claims.ExpiresAt == nil || *claims.ExpiresAt == 0 {
		return 0, false
	}
	return *claims.ExpiresAt, true
}

// GetExpiryTime is GetExpiry as a time.Time.
func GetExpiryTime(token string) (time.Time, bool) {
	exp, ok := GetExpiry(token)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(exp, 0).UTC(), true
}

func stringClaim(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func numericClaim(raw json.RawMessage) *int64 {
	// json.Number also accepts quoted digits; exp must be a JSON number.
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	if i, err := n.Int64(); err == nil {
		return &i
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	i := int64(f)
	return &i
}
