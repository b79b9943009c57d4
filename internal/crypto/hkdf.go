package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"sealroom/internal/domain"
	"sealroom/internal/util/memzero"
)

// zeroSalt is the fixed HKDF salt. Inputs are already high-entropy and
// domain separation is carried by the info label.
var zeroSalt = make([]byte, sha256.Size)

// HKDF expands ikm into n bytes under the info label.
func HKDF(ikm []byte, info string, n int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, zeroSalt, []byte(info))
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeriveKey is HKDF with a 32-byte output.
func DeriveKey(ikm []byte, info string) (domain.SymmetricKey, error) {
	var k domain.SymmetricKey
	out, err := HKDF(ikm, info, len(k))
	if err != nil {
		return k, err
	}
	copy(k[:], out)
	memzero.Zero(out)
	return k, nil
}
