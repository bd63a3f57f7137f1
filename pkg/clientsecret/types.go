// Package clientsecret mints and inspects Sign in with Apple client secrets:
// ES256 signed compact tokens with a provider-imposed maximum lifetime.
package clientsecret

import (
	"time"
)

const (
	// Audience is the fixed aud claim identifying Apple's token endpoint.
	Audience = "https://appleid.apple.com"

	// Algorithm is the only supported JOSE signature algorithm.
	Algorithm = "ES256"

	// MaxLifetime is the longest validity Apple accepts for a client secret.
	MaxLifetime = 180 * 24 * time.Hour

	// MaxLifetimeSeconds is MaxLifetime in seconds.
	MaxLifetimeSeconds = int64(MaxLifetime / time.Second)

	component = "clientsecret"
)

// Config holds the inputs for minting a client secret.
type Config struct {
	// TeamID is the Apple developer team identifier (iss).
	TeamID string `validate:"required"`
	// ClientID is the Services ID the secret authenticates (sub).
	ClientID string `validate:"required"`
	// KeyID is the identifier of the signing key (kid).
	KeyID string `validate:"required"`
	// PrivateKeyPEM is the PEM encoded P-256 private key. Literal "\n"
	// sequences are accepted in place of newlines.
	PrivateKeyPEM string `validate:"required"`
	// LifetimeSeconds is the requested validity; zero means MaxLifetimeSeconds.
	// Values above MaxLifetimeSeconds are capped.
	LifetimeSeconds int64
}

// Header is the JOSE header of a client secret.
type Header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Claims is the payload of a client secret. Every field is optional when
// decoding a token this process did not mint.
type Claims struct {
	Issuer    string `json:"iss,omitempty"`
	IssuedAt  *int64 `json:"iat,omitempty"`
	ExpiresAt *int64 `json:"exp,omitempty"`
	Audience  string `json:"aud,omitempty"`
	Subject   string `json:"sub,omitempty"`
}

// MintedSecret is a freshly signed client secret.
type MintedSecret struct {
	Token     string
	IssuedAt  int64
	ExpiresAt int64
}

// ExpiresAtTime returns the expiry as a time.Time.
func (m *MintedSecret) ExpiresAtTime() time.Time {
	return time.Unix(m.ExpiresAt, 0).UTC()
}
