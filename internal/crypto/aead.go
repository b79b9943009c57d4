package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"

	"sealroom/internal/domain"
)

const (
	KeyBytes   = chacha20poly1305.KeySize
	NonceBytes = chacha20poly1305.NonceSize
)

// GenerateSymmetricKey returns 32 random bytes.
func GenerateSymmetricKey() (domain.SymmetricKey, error) {
	var k domain.SymmetricKey
	if _, err := rand.Read(k[:]); err != nil {
		return k, err
	}
	return k, nil
}

// Encrypt seals plaintext under key with a fresh random nonce. ad may be nil.
func Encrypt(key domain.SymmetricKey, plaintext, ad []byte) (ciphertext []byte, nonce [NonceBytes]byte, err error) {
	aead, err := chacha20poly1305.New(key.Slice())
	if err != nil {
		return nil, nonce, err
	}
	if _, err = rand.Read(nonce[:]); err != nil {
		return nil, nonce, err
	}
	return aead.Seal(nil, nonce[:], plaintext, ad), nonce, nil
}

// Decrypt opens ciphertext. Any mismatch of key, nonce, ad or ciphertext
// yields an error of kind DecryptionFailed.
func Decrypt(key domain.SymmetricKey, nonce, ciphertext, ad []byte) ([]byte, error) {
	if len(nonce) != NonceBytes {
		return nil, domain.Wrap(domain.KindDecryptionFailed, "decrypt", errBadNonce)
	}
	aead, err := chacha20poly1305.New(key.Slice())
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, domain.Wrap(domain.KindDecryptionFailed, "decrypt", err)
	}
	return pt, nil
}

var errBadNonce = errors.New("nonce must be 12 bytes")
