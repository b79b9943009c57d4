package envelope_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealroom/internal/crypto"
	"sealroom/internal/domain"
	"sealroom/internal/protocol/envelope"
)

func newKey(t *testing.T) domain.SymmetricKey {
	t.Helper()
	k, err := crypto.GenerateSymmetricKey()
	require.NoError(t, err)
	return k
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := newKey(t)
	for _, pt := range [][]byte{{}, []byte("hello"), make([]byte, 4096)} {
		env, err := envelope.EncryptMessage(pt, key, "m-1", 1, nil)
		require.NoError(t, err)
		got, err := envelope.DecryptMessage(env, key, "m-1")
		require.NoError(t, err)
		assert.Equal(t, pt, append([]byte{}, got...))
	}
}

func TestDecrypt_FlippedBits_DecryptionFailed(t *testing.T) {
	key := newKey(t)
	env, err := envelope.EncryptMessage([]byte("hello"), key, "m-1", 1, nil)
	require.NoError(t, err)

	for i := range env.Ciphertext {
		bad := env
		bad.Ciphertext = append([]byte(nil), env.Ciphertext...)
		bad.Ciphertext[i] ^= 0x01
		_, err := envelope.DecryptMessage(bad, key, "m-1")
		require.True(t, errors.Is(err, domain.ErrDecryptionFailed), "ct byte %d: %v", i, err)
	}
	for i := range env.Nonce {
		bad := env
		bad.Nonce = append([]byte(nil), env.Nonce...)
		bad.Nonce[i] ^= 0x80
		_, err := envelope.DecryptMessage(bad, key, "m-1")
		require.True(t, errors.Is(err, domain.ErrDecryptionFailed), "iv byte %d: %v", i, err)
	}
}

func TestDecrypt_OtherMessageID_Fails(t *testing.T) {
	key := newKey(t)
	env, err := envelope.EncryptMessage([]byte("hello"), key, "m-1", 1, nil)
	require.NoError(t, err)

	_, err = envelope.DecryptMessage(env, key, "m-2")
	assert.True(t, errors.Is(err, domain.ErrDecryptionFailed), "got %v", err)
}

func TestDecrypt_VersionIsolation(t *testing.T) {
	v1, v2 := newKey(t), newKey(t)

	e2, err := envelope.EncryptMessage([]byte("world"), v2, "m-2", 2, nil)
	require.NoError(t, err)
	_, err = envelope.DecryptMessage(e2, v1, "m-2")
	assert.True(t, errors.Is(err, domain.ErrDecryptionFailed))

	e1, err := envelope.EncryptMessage([]byte("hello"), v1, "m-1", 1, nil)
	require.NoError(t, err)
	_, err = envelope.DecryptMessage(e1, v2, "m-1")
	assert.True(t, errors.Is(err, domain.ErrDecryptionFailed))
}

func TestMarshalParse_WireShape(t *testing.T) {
	key := newKey(t)
	_, ek, err := crypto.GenerateX25519()
	require.NoError(t, err)

	env, err := envelope.EncryptMessage([]byte("hi"), key, "m-1", 3, &ek)
	require.NoError(t, err)
	raw, err := envelope.Marshal(env)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.EqualValues(t, 1, fields["v"])
	assert.EqualValues(t, 3, fields["kv"])
	assert.Contains(t, fields, "ct")
	assert.Contains(t, fields, "iv")
	assert.Contains(t, fields, "ek")

	parsed, err := envelope.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, parsed.KeyVersion())
	got, err := envelope.DecryptMessage(parsed, key, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
	require.NotNil(t, parsed.(envelope.V1).Ephemeral)
	assert.Equal(t, ek, *parsed.(envelope.V1).Ephemeral)
}

func TestMarshal_NoEphemeral_OmitsEK(t *testing.T) {
	env, err := envelope.EncryptMessage([]byte("hi"), newKey(t), "m-1", 1, nil)
	require.NoError(t, err)
	raw, err := envelope.Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"ek"`)
}

func TestParse_UnknownVersion(t *testing.T) {
	_, err := envelope.Parse([]byte(`{"v":2,"ct":"","iv":""}`))
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument), "got %v", err)

	_, err = envelope.Parse([]byte(`not json`))
	assert.True(t, errors.Is(err, domain.ErrDecryptionFailed), "got %v", err)
}

func TestRecord_RoundTrip(t *testing.T) {
	key := newKey(t)
	_, ek, err := crypto.GenerateX25519()
	require.NoError(t, err)

	env, err := envelope.EncryptMessage([]byte("first dm"), key, "m-1", 1, &ek)
	require.NoError(t, err)

	rec := envelope.ToRecord(env)
	assert.True(t, rec.IsEncrypted)
	assert.Empty(t, rec.Content)
	assert.NotEmpty(t, rec.SenderEphemeralKey)

	back, err := envelope.FromRecord(rec)
	require.NoError(t, err)
	got, err := envelope.DecryptMessage(back, key, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "first dm", string(got))
}

func TestFromRecord_Plaintext_Rejected(t *testing.T) {
	_, err := envelope.FromRecord(domain.MessageRecord{Content: "hi"})
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument), "got %v", err)
}
