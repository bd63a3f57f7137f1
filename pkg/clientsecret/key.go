package clientsecret

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	rerrors "github.com/hixichen/client-secret-rotator/pkg/errors"
)

// NormalizePrivateKey trims surrounding whitespace, converts CRLF line endings
// and expands literal "\n" escapes. Keys pasted into .env files or CI variables
// usually arrive on a single line.
func NormalizePrivateKey(pemText string) string {
	key := strings.TrimSpace(pemText)
	key = strings.ReplaceAll(key, "\r\n", "\n")
	if strings.Contains(key, `\n`) {
		key = strings.ReplaceAll(key, `\n`, "\n")
	}
	return key
}

// ParsePrivateKey decodes a PKCS#8 ("PRIVATE KEY", as in Apple .p8 files) or
// SEC1 ("EC PRIVATE KEY") PEM block. Only P-256 keys are accepted.
func ParsePrivateKey(pemText string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(NormalizePrivateKey(pemText)))
	if block == nil {
		return nil, rerrors.NewSigningError(component, "private key is not PEM encoded", nil)
	}

	var key *ecdsa.PrivateKey
	switch block.Type {
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, rerrors.NewSigningError(component, "failed to parse PKCS#8 private key", err)
		}
		ec, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, rerrors.NewSigningError(component, fmt.Sprintf("private key is %T, expected ECDSA", parsed), nil)
		}
		key = ec
	case "EC PRIVATE KEY":
		ec, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, rerrors.NewSigningError(component, "failed to parse EC private key", err)
		}
		key = ec
	default:
		return nil, rerrors.NewSigningError(component, fmt.Sprintf("unsupported PEM block type %q", block.Type), nil)
	}

	if key.Curve != elliptic.P256() {
		return nil, rerrors.NewSigningError(component, fmt.Sprintf("curve %s is not supported, ES256 requires P-256", key.Curve.Params().Name), nil)
	}
	return key, nil
}
