// Package der converts ASN.1 DER encoded ECDSA signatures into the fixed-width
// raw R||S form that JOSE uses for ES256.
package der

import (
	"fmt"

	rerrors "github.com/hixichen/client-secret-rotator/pkg/errors"
)

const (
	// P256FieldSize is the byte length of a P-256 field element.
	P256FieldSize = 32

	tagSequence = 0x30
	tagInteger  = 0x02

	component = "der"
)

// ToRaw parses der as SEQUENCE { INTEGER r, INTEGER s } and returns r||s with
// each integer normalised to fieldSize bytes.
func ToRaw(der []byte, fieldSize int) ([]byte, error) {
	if fieldSize <= 0 {
		return nil, rerrors.NewValidationError(component, fmt.Sprintf("invalid field size %d", fieldSize), nil)
	}

	p := &parser{buf: der}

	tag, err := p.byte()
	if err != nil {
		return nil, malformed("missing sequence tag", err)
	}
	if tag != tagSequence {
		return nil, malformed(fmt.Sprintf("expected sequence tag 0x30, got 0x%02x", tag), nil)
	}
	seqLen, err := p.length()
	if err != nil {
		return nil, malformed("invalid sequence length", err)
	}
	if seqLen != p.remaining() {
		return nil, malformed(fmt.Sprintf("sequence length %d does not match remaining %d bytes", seqLen, p.remaining()), nil)
	}

	// Both integers must lie inside the sequence and fill it exactly.
	body := &parser{buf: p.buf[p.pos : p.pos+seqLen]}
	r, err := body.integer()
	if err != nil {
		return nil, malformed("invalid integer r", err)
	}
	s, err := body.integer()
	if err != nil {
		return nil, malformed("invalid integer s", err)
	}
	if body.remaining() != 0 {
		return nil, malformed(fmt.Sprintf("%d unexpected bytes after integer s", body.remaining()), nil)
	}

	raw := make([]byte, 0, 2*fieldSize)
	for _, part := range []struct {
		name  string
		value []byte
	}{{"r", r}, {"s", s}} {
		fixed, err := normalise(part.value, fieldSize)
		if err != nil {
			return nil, malformed("invalid integer "+part.name, err)
		}
		raw = append(raw, fixed...)
	}
	return raw, nil
}

// normalise strips the DER sign byte or left-pads v to exactly size bytes.
func normalise(v []byte, size int) ([]byte, error) {
	switch {
	case len(v) == size:
		return v, nil
	case len(v) == size+1:
		if v[0] != 0x00 {
			return nil, fmt.Errorf("%d byte integer without leading zero", len(v))
		}
		return v[1:], nil
	case len(v) < size:
		out := make([]byte, size)
		copy(out[size-len(v):], v)
		return out, nil
	default:
		return nil, fmt.Errorf("integer length %d exceeds field size %d", len(v), size)
	}
}

type parser struct {
	buf []byte
	pos int
}

func (p *parser) remaining() int {
	return len(p.buf) - p.pos
}

func (p *parser) byte() (byte, error) {
	if p.pos >= len(p.buf) {
		return 0, fmt.Errorf("unexpected end of input at offset %d", p.pos)
	}
	b := p.buf[p.pos]
	p.pos++
	return b, nil
}

func (p *parser) bytes(n int) ([]byte, error) {
	if n < 0 || n > p.remaining() {
		return nil, fmt.Errorf("need %d bytes at offset %d, have %d", n, p.pos, p.remaining())
	}
	b := p.buf[p.pos : p.pos+n]
	p.pos += n
	return b, nil
}

// length reads a short-form or long-form DER length.
func (p *parser) length() (int, error) {
	first, err := p.byte()
	if err != nil {
		return 0, err
	}
	if first&0x80 == 0 {
		return int(first), nil
	}

	n := int(first & 0x7f)
	if n == 0 || n > 4 {
		return 0, fmt.Errorf("unsupported length-of-length %d", n)
	}
	length := 0
	for i := 0; i < n; i++ {
		b, err := p.byte()
		if err != nil {
			return 0, err
		}
		length = length<<8 | int(b)
	}
	return length, nil
}

// integer reads an INTEGER with a one-byte length.
func (p *parser) integer() ([]byte, error) {
	tag, err := p.byte()
	if err != nil {
		return nil, err
	}
	if tag != tagInteger {
		return nil, fmt.Errorf("expected integer tag 0x02, got 0x%02x", tag)
	}
	n, err := p.byte()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("zero length integer")
	}
	return p.bytes(int(n))
}

func malformed(message string, err error) error {
	return rerrors.NewMalformedSignatureError(component, message, err)
}
