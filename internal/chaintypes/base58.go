package chaintypes

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// DecodeAddress parses a base58-encoded 32-byte account key.
func DecodeAddress(s string) (Address, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("chaintypes: decode address %q: %w", s, err)
	}
	if len(b) != 32 {
		return Address{}, fmt.Errorf("chaintypes: address %q decodes to %d bytes, want 32", s, len(b))
	}
	var out Address
	copy(out[:], b)
	return out, nil
}

// String returns the base58 encoding of the address.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// MarshalJSON encodes the address as its base58 string form.
func (a Address) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// DecodeSignature parses a base58-encoded 64-byte transaction signature.
func DecodeSignature(s string) (Signature, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Signature{}, fmt.Errorf("chaintypes: decode signature %q: %w", s, err)
	}
	if len(b) != 64 {
		return Signature{}, fmt.Errorf("chaintypes: signature %q decodes to %d bytes, want 64", s, len(b))
	}
	var out Signature
	copy(out[:], b)
	return out, nil
}

// String returns the base58 encoding of the signature.
func (s Signature) String() string {
	return base58.Encode(s[:])
}

// MarshalJSON encodes the signature as its base58 string form.
func (s Signature) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
