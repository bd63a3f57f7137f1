package clientsecret

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/hixichen/client-secret-rotator/pkg/base64url"
	"github.com/hixichen/client-secret-rotator/pkg/der"
	rerrors "github.com/hixichen/client-secret-rotator/pkg/errors"
)

// Minter signs new client secrets.
type Minter struct {
	nowFunc func() time.Time
	rand    io.Reader
}

// NewMinter creates a Minter using the wall clock and crypto/rand.
func NewMinter() *Minter {
	return &Minter{
		nowFunc: time.Now,
		rand:    rand.Reader,
	}
}

// SetTimeFunc sets the time function (for testing).
func (m *Minter) SetTimeFunc(f func() time.Time) {
	m.nowFunc = f
}

// Mint builds, signs and encodes a client secret for cfg.
func (m *Minter) Mint(cfg Config) (*MintedSecret, error) {
	if missing := cfg.missingFields(); len(missing) > 0 {
		return nil, rerrors.NewValidationError(component, "missing required fields: "+strings.Join(missing, ", "), nil)
	}

	key, err := ParsePrivateKey(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}

	iat := m.nowFunc().Unix()
	exp := iat + EffectiveLifetime(cfg.LifetimeSeconds)

	headerJSON, err := json.Marshal(Header{Alg: Algorithm, Kid: cfg.KeyID})
	if err != nil {
		return nil, rerrors.NewInternalError(component, "failed to encode header", err)
	}
	claimsJSON, err := json.Marshal(Claims{
		Issuer:    cfg.TeamID,
		IssuedAt:  &iat,
		ExpiresAt: &exp,
		Audience:  Audience,
		Subject:   cfg.ClientID,
	})
	if err != nil {
		return nil, rerrors.NewInternalError(component, "failed to encode claims", err)
	}

	signingInput := base64url.Encode(headerJSON) + "." + base64url.Encode(claimsJSON)

	sig, err := m.sign(key, signingInput)
	if err != nil {
		return nil, err
	}

	return &MintedSecret{
		Token:     signingInput + "." + base64url.Encode(sig),
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}

// sign returns the raw R||S ES256 signature over input.
func (m *Minter) sign(key *ecdsa.PrivateKey, input string) ([]byte, error) {
	digest := sha256.Sum256([]byte(input))
	asn1Sig, err := ecdsa.SignASN1(m.rand, key, digest[:])
	if err != nil {
		return nil, rerrors.NewSigningError(component, "ecdsa signing failed", err)
	}
	raw, err := der.ToRaw(asn1Sig, der.P256FieldSize)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// EffectiveLifetime returns requested capped at MaxLifetimeSeconds. Zero or
// negative values select the maximum.
func EffectiveLifetime(requested int64) int64 {
	if requested <= 0 || requested > MaxLifetimeSeconds {
		return MaxLifetimeSeconds
	}
	return requested
}

func (c Config) missingFields() []string {
	var missing []string
	if strings.TrimSpace(c.TeamID) == "" {
		missing = append(missing, "teamId")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "clientId")
	}
	if strings.TrimSpace(c.KeyID) == "" {
		missing = append(missing, "keyId")
	}
	if strings.TrimSpace(c.PrivateKeyPEM) == "" {
		missing = append(missing, "privateKey")
	}
	return missing
}
