// Package crypto exposes the minimal primitives used by sealroom.
//
// Contents
//
//   - X25519 key generation, seeding and Diffie–Hellman (GenerateX25519,
//     X25519FromSeed, DH)
//   - Ed25519 key generation, seeding, signing and verification
//     (GenerateEd25519, Ed25519FromSeed, SignEd25519, VerifyEd25519)
//   - ChaCha20-Poly1305 authenticated encryption with random 96-bit nonces
//     (GenerateSymmetricKey, Encrypt, Decrypt)
//   - HKDF-SHA256 with a fixed all-zero salt (HKDF, DeriveKey)
//   - Sealed NaCl boxes for per-recipient key shares (SealTo, OpenFrom)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Every function is pure apart from reading crypto/rand. Authentication
// failures are returned as domain errors of kind DecryptionFailed and never
// as partial plaintext. Nonces always come from crypto/rand; there is no
// counter that could repeat across processes.
package crypto
