package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/box"

	"sealroom/internal/domain"
)

const boxNonceBytes = 24

// SealTo encrypts msg to recipient, authenticated by sender's key. The result
// is nonce || box.
func SealTo(msg []byte, recipient domain.X25519Public, sender domain.X25519Private) ([]byte, error) {
	var nonce [boxNonceBytes]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	peer := [32]byte(recipient)
	priv := [32]byte(sender)
	return box.Seal(nonce[:], msg, &nonce, &peer, &priv), nil
}

// OpenFrom reverses SealTo. A wrong sender key, wrong recipient key or
// corrupted box all yield DecryptionFailed.
func OpenFrom(sealed []byte, sender domain.X25519Public, recipient domain.X25519Private) ([]byte, error) {
	if len(sealed) < boxNonceBytes+box.Overhead {
		return nil, domain.Wrap(domain.KindDecryptionFailed, "open share", errShortBox)
	}
	var nonce [boxNonceBytes]byte
	copy(nonce[:], sealed[:boxNonceBytes])
	peer := [32]byte(sender)
	priv := [32]byte(recipient)
	out, ok := box.Open(nil, sealed[boxNonceBytes:], &nonce, &peer, &priv)
	if !ok {
		return nil, domain.NewError(domain.KindDecryptionFailed, "open share: authentication failed")
	}
	return out, nil
}

var errShortBox = errors.New("sealed box too short")
