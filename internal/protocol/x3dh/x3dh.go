package x3dh

import (
	"sealroom/internal/crypto"
	"sealroom/internal/domain"
	"sealroom/internal/util/memzero"
)

// Info is the HKDF label binding the derived key to this handshake version.
const Info = "sealroom-x3dh-v1"

// Initiate runs the sender side against the recipient's bundle.
func Initiate(sender domain.Identity, bundle domain.PrekeyBundle) (shared domain.SymmetricKey, ephemeral domain.X25519Public, err error) {
	if !VerifyPrekey(bundle.SigningPublicKey, bundle.PrekeyPublic, bundle.PrekeySignature) {
		return shared, ephemeral, domain.ErrInvalidPrekeySignature
	}

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return shared, ephemeral, err
	}
	defer memzero.Zero(ephPriv[:])

	shared, err = derive(
		pair{sender.Encryption.Private, bundle.PrekeyPublic}, // DH(IKa, SPKb)
		pair{ephPriv, bundle.IdentityPublicKey},              // DH(EKa, IKb)
		pair{ephPriv, bundle.PrekeyPublic},                   // DH(EKa, SPKb)
	)
	if err != nil {
		return domain.SymmetricKey{}, ephemeral, err
	}
	return shared, ephPub, nil
}

// Complete runs the recipient side from the sender's identity and ephemeral keys.
func Complete(
	recipient domain.Identity,
	prekeySecret domain.X25519Private,
	senderIdentity domain.X25519Public,
	senderEphemeral domain.X25519Public,
) (domain.SymmetricKey, error) {
	return derive(
		pair{prekeySecret, senderIdentity},                  // DH(SPKb, IKa)
		pair{recipient.Encryption.Private, senderEphemeral}, // DH(IKb, EKa)
		pair{prekeySecret, senderEphemeral},                 // DH(SPKb, EKa)
	)
}

// VerifyPrekey checks the Ed25519 signature over the raw prekey bytes.
func VerifyPrekey(signing domain.Ed25519Public, prekey domain.X25519Public, sig []byte) bool {
	return crypto.VerifyEd25519(signing, prekey.Slice(), sig)
}

// SignPrekey signs the raw prekey bytes.
func SignPrekey(signing domain.Ed25519Private, prekey domain.X25519Public) []byte {
	return crypto.SignEd25519(signing, prekey.Slice())
}

type pair struct {
	priv domain.X25519Private
	pub  domain.X25519Public
}

func derive(terms ...pair) (domain.SymmetricKey, error) {
	transcript := make([]byte, 0, 32*len(terms))
	defer func() { memzero.Zero(transcript) }()
	for _, t := range terms {
		dh, err := crypto.DH(t.priv, t.pub)
		if err != nil {
			return domain.SymmetricKey{}, err
		}
		transcript = append(transcript, dh[:]...)
		memzero.Zero(dh[:])
	}
	return crypto.DeriveKey(transcript, Info)
}
