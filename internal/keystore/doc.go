// Package keystore wraps locally held secrets under a per-device key.
//
// A KeyStore is constructed explicitly and passed by reference to every
// component that needs it. The device key is loaded (or generated on first
// use) lazily and exactly once per successful initialization; concurrent
// callers block on the same initialization.
//
// # Records
//
// Each logical secret has its own record id (see ids.go). A record is
// AES-256-GCM ciphertext with a random 96-bit nonce and the record id as
// associated data, so a ciphertext cannot be moved under another id.
//
// # Failure modes
//
//   - Get on an absent id returns KeyNotFound.
//   - A missing device key while records exist, or a device key that fails to
//     open the canary record, returns KeyStoreUnavailable. The wrapped secrets
//     are then permanently unreadable and the user has to set up again.
//
// # Device key sources
//
//   - FileDeviceKey keeps the raw key in a 0600 file next to the records.
//   - KeyringDeviceKey keeps it in the host key manager via go-keyring.
package keystore
