package envelope

import (
	"encoding/json"
	"fmt"

	"sealroom/internal/crypto"
	"sealroom/internal/domain"
	"sealroom/internal/util/memzero"
)

// Version1 is the only envelope version produced today.
const Version1 = 1

// Envelope is one encrypted message. Switch on the concrete type to read it.
type Envelope interface {
	Version() int
	KeyVersion() int
}

// V1 is the version 1 envelope.
type V1 struct {
	Ciphertext []byte
	Nonce      []byte
	KeyVer     int
	Ephemeral  *domain.X25519Public
}

func (V1) Version() int      { return Version1 }
func (e V1) KeyVersion() int { return e.KeyVer }

// MessageInfo is the HKDF label of the per-message key for id.
func MessageInfo(id domain.MessageID) string { return "message:" + string(id) }

// EncryptMessage encrypts plaintext for message id under a group or session key.
// ephemeral is set only on the first DM message.
func EncryptMessage(
	plaintext []byte,
	key domain.SymmetricKey,
	id domain.MessageID,
	keyVersion int,
	ephemeral *domain.X25519Public,
) (V1, error) {
	if id == "" {
		return V1{}, domain.NewError(domain.KindInvalidArgument, "message id is required")
	}
	mk, err := crypto.DeriveKey(key.Slice(), MessageInfo(id))
	if err != nil {
		return V1{}, err
	}
	defer memzero.Zero(mk[:])

	ct, nonce, err := crypto.Encrypt(mk, plaintext, nil)
	if err != nil {
		return V1{}, err
	}
	return V1{Ciphertext: ct, Nonce: nonce[:], KeyVer: keyVersion, Ephemeral: ephemeral}, nil
}

// DecryptMessage re-derives the message key and opens env. Any authentication
// failure is DecryptionFailed.
func DecryptMessage(env Envelope, key domain.SymmetricKey, id domain.MessageID) ([]byte, error) {
	switch e := env.(type) {
	case V1:
		mk, err := crypto.DeriveKey(key.Slice(), MessageInfo(id))
		if err != nil {
			return nil, err
		}
		defer memzero.Zero(mk[:])
		return crypto.Decrypt(mk, e.Nonce, e.Ciphertext, nil)
	case *V1:
		return DecryptMessage(*e, key, id)
	default:
		return nil, unsupported(env.Version())
	}
}

type wireV1 struct {
	V  int    `json:"v"`
	CT string `json:"ct"`
	IV string `json:"iv"`
	KV int    `json:"kv"`
	EK string `json:"ek,omitempty"`
}

// Marshal encodes env in its wire form.
func Marshal(env Envelope) ([]byte, error) {
	switch e := env.(type) {
	case V1:
		w := wireV1{V: Version1, CT: crypto.B64(e.Ciphertext), IV: crypto.B64(e.Nonce), KV: e.KeyVer}
		if e.Ephemeral != nil {
			w.EK = crypto.B64(e.Ephemeral.Slice())
		}
		return json.Marshal(w)
	case *V1:
		return Marshal(*e)
	default:
		return nil, unsupported(env.Version())
	}
}

// Parse decodes the wire form, dispatching on "v".
func Parse(data []byte) (Envelope, error) {
	var head struct {
		V int `json:"v"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, domain.Wrap(domain.KindDecryptionFailed, "malformed envelope", err)
	}
	switch head.V {
	case Version1:
		var w wireV1
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, domain.Wrap(domain.KindDecryptionFailed, "malformed envelope", err)
		}
		return decodeV1(w.CT, w.IV, w.KV, w.EK)
	default:
		return nil, unsupported(head.V)
	}
}

// ToRecord maps env onto the persisted message-record fields.
func ToRecord(env V1) domain.MessageRecord {
	rec := domain.MessageRecord{
		EncryptedContent: crypto.B64(env.Ciphertext),
		EncryptionIV:     crypto.B64(env.Nonce),
		KeyVersion:       env.KeyVer,
		IsEncrypted:      true,
	}
	if env.Ephemeral != nil {
		rec.SenderEphemeralKey = crypto.B64(env.Ephemeral.Slice())
	}
	return rec
}

// FromRecord reads a V1 envelope back out of a message record.
func FromRecord(rec domain.MessageRecord) (V1, error) {
	if !rec.IsEncrypted {
		return V1{}, domain.NewError(domain.KindInvalidArgument, "message record is not encrypted")
	}
	env, err := decodeV1(rec.EncryptedContent, rec.EncryptionIV, rec.KeyVersion, rec.SenderEphemeralKey)
	if err != nil {
		return V1{}, err
	}
	return env, nil
}

func decodeV1(ct, iv string, kv int, ek string) (V1, error) {
	rawCT, err := crypto.FromB64(ct)
	if err != nil {
		return V1{}, domain.Wrap(domain.KindDecryptionFailed, "ciphertext encoding", err)
	}
	rawIV, err := crypto.FromB64(iv)
	if err != nil {
		return V1{}, domain.Wrap(domain.KindDecryptionFailed, "nonce encoding", err)
	}
	env := V1{Ciphertext: rawCT, Nonce: rawIV, KeyVer: kv}
	if ek != "" {
		var pub domain.X25519Public
		if err := pub.UnmarshalText([]byte(ek)); err != nil {
			return V1{}, domain.Wrap(domain.KindInvalidArgument, "ephemeral key", err)
		}
		env.Ephemeral = &pub
	}
	return env, nil
}

func unsupported(v int) error {
	return domain.NewError(domain.KindInvalidArgument, fmt.Sprintf("unsupported envelope version %d", v))
}
