// Package identity derives the long-term account keys from a wallet
// signature or a BIP-39 recovery phrase.
//
// Both paths feed high-entropy input through HKDF-SHA256 twice, under the
// labels "sealroom-identity-v1" (X25519 encryption seed) and
// "sealroom-signing-v1" (Ed25519 signing seed), with a zero salt. The result is
// deterministic: restoring from the same phrase or signature on a new device
// reproduces bit-identical keys without any server-side secret.
package identity
