package clientsecret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hixichen/client-secret-rotator/pkg/base64url"
)

// Header and claims of a token issued for TEAMID123/com.example.app; the
// signature segment is not checked.
const knownToken = "eyJraWQiOiJBQkMxMjNYWVoiLCJhbGciOiJFUzI1NiJ9." +
	"eyJpc3MiOiJURUFNSUQxMjMiLCJpYXQiOjE3NjI0NzAwNTQsImV4cCI6MTc3ODAyMjA1NCwiYXVkIjoiaHR0cHM6Ly9hcHBsZWlkLmFwcGxlLmNvbSIsInN1YiI6ImNvbS5leGFtcGxlLmFwcCJ9." +
	"63lA4G3NpxaHM7QiKZPilnzTPOBQo1tYqEOiS-i6R2zrZV1vcK2anvtfoB8RKp_fTP9fPA59ovZ0NgCXDlMnxg"

func tokenWithClaims(json string) string {
	return "eyJhbGciOiJFUzI1NiJ9." + base64url.EncodeString(json) + ".sig"
}

func TestDecodeClaims_KnownToken(t *testing.T) {
	claims := DecodeClaims(knownToken)
	require.NotNil(t, claims)

	require.NotNil(t, claims.IssuedAt)
	assert.Equal(t, int64(1762470054), *claims.IssuedAt)
	assert.Equal(t, "TEAMID123", claims.Issuer)
	assert.Equal(t, Audience, claims.Audience)
	assert.Equal(t, "com.example.app", claims.Subject)

	exp, ok := GetExpiry(knownToken)
	assert.True(t, ok)
	assert.Equal(t, int64(1778022054), exp)
}

func TestDecodeClaims_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"single segment", "onlyonepart"},
		{"invalid base64", "a.!!!notbase64.c"},
		{"empty claims segment", "a..c"},
		{"not json", "a." + base64url.EncodeString("not json") + ".c"},
		{"json array", "a." + base64url.EncodeString(`[1,2,3]`) + ".c"},
		{"json null", "a." + base64url.EncodeString(`null`) + ".c"},
		{"json string", "a." + base64url.EncodeString(`"exp"`) + ".c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Nil(t, DecodeClaims(tt.token))
			})
			_, ok := GetExpiry(tt.token)
			assert.False(t, ok)
		})
	}
}

func TestDecodeClaims_TwoSegmentsIsEnough(t *testing.T) {
	claims := DecodeClaims("hdr." + base64url.EncodeString(`{"exp":42}`))
	require.NotNil(t, claims)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, int64(42), *claims.ExpiresAt)
}

func TestGetExpiry(t *testing.T) {
	tests := []struct {
		name   string
		claims string
		want   int64
		wantOK bool
	}{
		{"integer", `{"exp":1778022054}`, 1778022054, true},
		{"float", `{"exp":1778022054.0}`, 1778022054, true},
		{"exponent", `{"exp":1.7e9}`, 1700000000, true},
		{"missing", `{"iat":1}`, 0, false},
		{"zero", `{"exp":0}`, 0, false},
		{"string", `{"exp":"1778022054"}`, 0, false},
		{"bool", `{"exp":true}`, 0, false},
		{"null", `{"exp":null}`, 0, false},
		{"object", `{"exp":{}}`, 0, false},
		{"two to the 63", `{"exp":9223372036854775808}`, 0, false},
		{"beyond int64", `{"exp":1e19}`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, ok := GetExpiry(tokenWithClaims(tt.claims))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, exp)
		})
	}
}

func TestDecodeClaims_WrongTypedFieldsDropped(t *testing.T) {
	claims := DecodeClaims(tokenWithClaims(`{"iss":7,"sub":"client","aud":["a"],"exp":99}`))
	require.NotNil(t, claims)
	assert.Empty(t, claims.Issuer)
	assert.Empty(t, claims.Audience)
	assert.Equal(t, "client", claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, int64(99), *claims.ExpiresAt)
	assert.Nil(t, claims.IssuedAt)
}

func TestGetExpiryTime(t *testing.T) {
	ts, ok := GetExpiryTime(knownToken)
	require.True(t, ok)
	assert.Equal(t, int64(1778022054), ts.Unix())

	_, ok = GetExpiryTime("")
	assert.False(t, ok)
}
