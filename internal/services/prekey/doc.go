// Package prekey manages the signed prekey used by the DM handshake.
//
// Rotation generates a new X25519 prekey, signs it with the identity's Ed25519
// key, stores the secret in the key store and publishes the public half.
package prekey
