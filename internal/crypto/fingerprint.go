package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"sealroom/internal/domain"
)

// fingerprintBytes is how much of the SHA-256 digest is shown (20 hex chars).
const fingerprintBytes = 10

// Fingerprint returns the display fingerprint of an identity encryption key:
// hex of the first 10 bytes of its SHA-256 digest.
func Fingerprint(pub domain.X25519Public) domain.Fingerprint {
	sum := sha256.Sum256(pub[:])
	return domain.Fingerprint(hex.EncodeToString(sum[:fingerprintBytes]))
}
