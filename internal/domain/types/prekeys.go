package types

// PrekeyBundle is what a peer fetches to start a DM handshake with an offline user.
// PrekeySignature is an Ed25519 signature over the raw PrekeyPublic bytes.
type PrekeyBundle struct {
	IdentityPublicKey X25519Public  `json:"identityPublicKey"`
	SigningPublicKey  Ed25519Public `json:"signingPublicKey"`
	PrekeyPublic      X25519Public  `json:"prekeyPublic"`
	PrekeySignature   []byte        `json:"prekeySignature"`
}

// SignedPrekey is the part of the bundle the owner publishes alongside its identity.
type SignedPrekey struct {
	PrekeyPublic    X25519Public `json:"prekeyPublic"`
	PrekeySignature []byte       `json:"prekeySignature"`
}
