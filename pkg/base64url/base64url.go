// Package base64url implements the unpadded URL-safe base64 variant used by
// compact tokens.
package base64url

import (
	"encoding/base64"
	"fmt"
	"strings"
)

var (
	toURL = strings.NewReplacer("+", "-", "/", "_")
	toStd = strings.NewReplacer("-", "+", "_", "/")
)

// Encode returns the URL-safe, unpadded base64 encoding of data.
func Encode(data []byte) string {
	return strings.TrimRight(toURL.Replace(base64.StdEncoding.EncodeToString(data)), "=")
}

// EncodeString encodes the UTF-8 bytes of s.
func EncodeString(s string) string {
	return Encode([]byte(s))
}

// Decode reverses Encode. Padding is restored from len(s)%4; a remainder of 1
// cannot come from any byte sequence and fails to decode.
func Decode(s string) ([]byte, error) {
	str := toStd.Replace(s)
	switch len(str) % 4 {
	case 2:
		str += "=="
	case 3:
		str += "="
	case 1:
		str += "==="
	}

	data, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("invalid base64url input: %w", err)
	}
	return data, nil
}
