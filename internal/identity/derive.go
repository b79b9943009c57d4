package identity

import (
	"strings"

	"github.com/tyler-smith/go-bip39"

	"sealroom/internal/crypto"
	"sealroom/internal/domain"
	"sealroom/internal/util/memzero"
)

const (
	hkdfInfoEncryption = "sealroom-identity-v1"
	hkdfInfoSigning    = "sealroom-signing-v1"

	// SignatureBytes is the length of an Ethereum-style wallet signature (r || s || v).
	SignatureBytes = 65

	mnemonicEntropyBits = 256
)

// FromSignature derives an identity from a wallet signature.
func FromSignature(signature []byte) (domain.Identity, error) {
	if len(signature) != SignatureBytes {
		return domain.Identity{}, domain.NewError(domain.KindInvalidArgument, "wallet signature must be 65 bytes")
	}
	return DeriveKeys(signature)
}

// FromMnemonic validates mnemonic against the BIP-39 wordlist and checksum,
// expands it with the standard PBKDF2 seed function (empty passphrase) and
// derives the identity from the 64-byte seed.
func FromMnemonic(mnemonic string) (domain.Identity, error) {
	mnemonic = NormalizeMnemonic(mnemonic)
	if mnemonic == "" || !bip39.IsMnemonicValid(mnemonic) {
		return domain.Identity{}, domain.ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")
	defer memzero.Zero(seed)
	return DeriveKeys(seed)
}

// NewMnemonic returns a fresh 24-word recovery phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", err
	}
	defer memzero.Zero(entropy)
	return bip39.NewMnemonic(entropy)
}

// ValidMnemonic reports whether mnemonic passes wordlist and checksum checks.
func ValidMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(NormalizeMnemonic(mnemonic))
}

// NormalizeMnemonic lowercases and collapses whitespace.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// DeriveKeys turns raw key material into an identity.
func DeriveKeys(material []byte) (domain.Identity, error) {
	encSeed, err := hkdfSeed(material, hkdfInfoEncryption)
	if err != nil {
		return domain.Identity{}, err
	}
	defer memzero.Zero(encSeed[:])
	signSeed, err := hkdfSeed(material, hkdfInfoSigning)
	if err != nil {
		return domain.Identity{}, err
	}
	defer memzero.Zero(signSeed[:])

	xPriv, xPub, err := crypto.X25519FromSeed(encSeed)
	if err != nil {
		return domain.Identity{}, err
	}
	edPriv, edPub := crypto.Ed25519FromSeed(signSeed)

	return domain.Identity{
		Encryption: domain.X25519KeyPair{Public: xPub, Private: xPriv},
		Signing:    domain.Ed25519KeyPair{Public: edPub, Private: edPriv},
	}, nil
}

// Fingerprint returns a short fingerprint of the identity's X25519 public key.
func Fingerprint(id domain.Identity) domain.Fingerprint {
	return crypto.Fingerprint(id.Encryption.Public)
}

func hkdfSeed(material []byte, info string) ([32]byte, error) {
	var seed [32]byte
	out, err := crypto.HKDF(material, info, len(seed))
	if err != nil {
		return seed, err
	}
	copy(seed[:], out)
	memzero.Zero(out)
	return seed, nil
}
