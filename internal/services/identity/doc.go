// Package identity manages creation, recovery and loading of the local identity.
//
// Identities are derived deterministically from a BIP-39 recovery phrase or a
// wallet signature, wrapped by the key store and published to the directory
// as a public key bundle.
package identity
