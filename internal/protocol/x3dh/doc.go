// Package x3dh implements the three-DH asynchronous handshake used to derive
// the shared key of a DM session.
//
// # Overview
//
// The recipient publishes a bundle holding its identity key (X25519), its
// signing key (Ed25519) and a signed prekey (X25519). The initiator can derive
// a shared 32-byte key while the recipient is offline.
//
// # Flows
//
// Initiator:
//  1. Verify the prekey signature against the bundle's signing key.
//  2. Generate an ephemeral X25519 key pair.
//  3. Compute IKa·SPKb, EKa·IKb, EKa·SPKb.
//  4. HKDF over the 96-byte transcript to produce the shared key.
//  5. Return the shared key and the ephemeral public key, which must ride
//     with the first envelope.
//
// Recipient:
//  1. Take the sender's identity key and ephemeral key from the first envelope.
//  2. Compute SPKb·IKa, IKb·EKa, SPKb·EKa.
//  3. HKDF the same transcript to the identical shared key.
//
// # Errors
//
// Initiate fails with domain.ErrInvalidPrekeySignature before any DH when the
// bundle does not verify. Low-order peer keys fail with kind InvalidArgument.
//
// # Security notes
//
// There are no one-time prekeys and no ratchet: the shared key is reused for
// the lifetime of the session.
package x3dh
