package types

// ChannelKey is one version of a channel's group key. A version is never mutated
// once issued; rotation issues version+1.
type ChannelKey struct {
	Key     SymmetricKey `json:"key"`
	Version int          `json:"version"`
}

// ChannelKeyShare is one member's sealed copy of a channel key version.
// EncryptedKey is a NaCl box (nonce || ciphertext) from SenderPublicKey to the member.
type ChannelKeyShare struct {
	UserID          UserID       `json:"userId"`
	EncryptedKey    []byte       `json:"encryptedKey"`
	Version         int          `json:"version"`
	SenderPublicKey X25519Public `json:"senderPublicKey"`
}

// Member is a channel member together with its published identity key.
type Member struct {
	UserID    UserID       `json:"userId"`
	PublicKey X25519Public `json:"publicKey"`
}
