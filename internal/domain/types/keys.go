package types

import (
	"encoding/base64"
	"fmt"
)

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is unset.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// MarshalText encodes the key as standard base64.
func (p X25519Public) MarshalText() ([]byte, error) { return encodeText(p[:]), nil }

// UnmarshalText decodes a base64 key.
func (p *X25519Public) UnmarshalText(b []byte) error { return decodeText("X25519 public", b, p[:]) }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k X25519Private) MarshalText() ([]byte, error) { return encodeText(k[:]), nil }

// UnmarshalText decodes a base64 key.
func (k *X25519Private) UnmarshalText(b []byte) error { return decodeText("X25519 private", b, k[:]) }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// MarshalText encodes the key as standard base64.
func (p Ed25519Public) MarshalText() ([]byte, error) { return encodeText(p[:]), nil }

// UnmarshalText decodes a base64 key.
func (p *Ed25519Public) UnmarshalText(b []byte) error { return decodeText("Ed25519 public", b, p[:]) }

// Ed25519Private is an Ed25519 signing private key (ed25519.PrivateKey layout).
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k Ed25519Private) MarshalText() ([]byte, error) { return encodeText(k[:]), nil }

// UnmarshalText decodes a base64 key.
func (k *Ed25519Private) UnmarshalText(b []byte) error { return decodeText("Ed25519 private", b, k[:]) }

// SymmetricKey is a 256-bit key for channel groups, DM sessions and message keys.
type SymmetricKey [32]byte

// Slice returns the key as a []byte.
func (k SymmetricKey) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k SymmetricKey) MarshalText() ([]byte, error) { return encodeText(k[:]), nil }

// UnmarshalText decodes a base64 key.
func (k *SymmetricKey) UnmarshalText(b []byte) error { return decodeText("symmetric key", b, k[:]) }

func encodeText(b []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
	base64.StdEncoding.Encode(out, b)
	return out
}

func decodeText(what string, in []byte, dst []byte) error {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(in)))
	n, err := base64.StdEncoding.Decode(raw, in)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n != len(dst) {
		return fmt.Errorf("%s: want %d bytes, got %d", what, len(dst), n)
	}
	copy(dst, raw[:n])
	return nil
}
