package types

// X25519KeyPair is a Curve25519 encryption key pair.
type X25519KeyPair struct {
	Public  X25519Public  `json:"public"`
	Private X25519Private `json:"private"`
}

// Ed25519KeyPair is a signing key pair.
type Ed25519KeyPair struct {
	Public  Ed25519Public  `json:"public"`
	Private Ed25519Private `json:"private"`
}

// Identity holds the long-term encryption and signing keys of the local account.
// The private halves only ever leave the process wrapped by the key store.
type Identity struct {
	Encryption X25519KeyPair  `json:"encryption"`
	Signing    Ed25519KeyPair `json:"signing"`
}

// PublicKeyBundle is the only identity material ever transmitted.
type PublicKeyBundle struct {
	IdentityPublicKey X25519Public  `json:"identityPublicKey"`
	SigningPublicKey  Ed25519Public `json:"signingPublicKey"`
}

// Public projects the identity onto its public halves.
func (id Identity) Public() PublicKeyBundle {
	return PublicKeyBundle{
		IdentityPublicKey: id.Encryption.Public,
		SigningPublicKey:  id.Signing.Public,
	}
}
