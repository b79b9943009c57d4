// Package domain defines core data models, collaborator contracts and the
// error taxonomy shared across sealroom.
//
// Plain types live in the types subpackage and contracts in interfaces;
// both are re-exported here through aliases for compact imports. The errors
// in errors.go classify every failure of the crypto core by Kind:
//
//   - KeyNotFound: a key is absent locally; fetch or initialize and retry once.
//   - DecryptionFailed: authentication failed; terminal for that message/key pair.
//   - KeyStoreUnavailable: the device key is gone; the user must set up again.
package domain
