package app_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealroom/internal/app"
	"sealroom/internal/config"
	"sealroom/internal/directory"
	"sealroom/internal/domain"
	"sealroom/internal/keystore"
	"sealroom/internal/protocol/envelope"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func device(t *testing.T, shared directory.Store, user domain.UserID) *app.Wire {
	t.Helper()
	store := keystore.New(keystore.NewMemoryBackend(), keystore.NewFileDeviceKey(t.TempDir()), nil)
	return app.Assemble(user, store, directory.Local{Store: shared, User: user}, nil)
}

func registered(t *testing.T, shared directory.Store, user domain.UserID, mnemonic string) *app.Wire {
	t.Helper()
	ctx := context.Background()
	w := device(t, shared, user)
	if mnemonic == "" {
		_, _, err := w.Identity.Create(ctx)
		require.NoError(t, err)
	} else {
		_, err := w.Identity.Restore(ctx, mnemonic)
		require.NoError(t, err)
	}
	_, err := w.Register(ctx)
	require.NoError(t, err)
	return w
}

func TestChannelLifecycle(t *testing.T) {
	ctx := context.Background()
	shared := directory.NewMemoryStore()
	alice := registered(t, shared, "alice", testMnemonic)
	bob := registered(t, shared, "bob", "")
	const ch domain.ChannelID = "general"

	require.NoError(t, bob.Directory.SetChannelMembers(ctx, ch, []domain.UserID{"alice", "bob"}))
	k1, err := bob.Channels.Create(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, 1, k1.Version)

	helloID, hello, err := bob.Messages.SendChannel(ctx, ch, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 1, hello.KeyVersion)
	assert.True(t, hello.IsEncrypted)
	assert.Empty(t, hello.Content)

	got, err := alice.Messages.ReadChannel(ctx, ch, helloID, hello)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	// Alice removes Bob and rotates.
	require.NoError(t, alice.Directory.SetChannelMembers(ctx, ch, []domain.UserID{"alice"}))
	k2, err := alice.Channels.Rotate(ctx, ch, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, k2.Version)
	assert.NotEqual(t, k1.Key, k2.Key)

	worldID, world, err := alice.Messages.SendChannel(ctx, ch, []byte("world"))
	require.NoError(t, err)
	assert.Equal(t, 2, world.KeyVersion)

	_, err = bob.Messages.ReadChannel(ctx, ch, worldID, world)
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound), "got %v", err)

	env, err := envelope.FromRecord(world)
	require.NoError(t, err)
	_, err = envelope.DecryptMessage(env, k1.Key, worldID)
	assert.True(t, errors.Is(err, domain.ErrDecryptionFailed), "got %v", err)

	// Old messages stay readable with the cached version.
	got, err = bob.Messages.ReadChannel(ctx, ch, helloID, hello)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	old, err := alice.Channels.KeyForVersion(ctx, ch, 1)
	require.NoError(t, err)
	assert.Equal(t, k1.Key, old.Key)
}

func TestChannel_JoinerFetchesCurrentKey(t *testing.T) {
	ctx := context.Background()
	shared := directory.NewMemoryStore()
	alice := registered(t, shared, "alice", "")
	carol := registered(t, shared, "carol", "")
	const ch domain.ChannelID = "ops"

	require.NoError(t, alice.Directory.SetChannelMembers(ctx, ch, []domain.UserID{"alice"}))
	_, err := alice.Channels.Create(ctx, ch)
	require.NoError(t, err)
	id, rec, err := alice.Messages.SendChannel(ctx, ch, []byte("before carol"))
	require.NoError(t, err)

	_, err = alice.Channels.AddMember(ctx, ch, "carol")
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))

	require.NoError(t, alice.Directory.SetChannelMembers(ctx, ch, []domain.UserID{"alice", "carol"}))
	share, err := alice.Channels.AddMember(ctx, ch, "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, share.Version)

	got, err := carol.Messages.ReadChannel(ctx, ch, id, rec)
	require.NoError(t, err)
	assert.Equal(t, "before carol", string(got))

	cur, err := carol.Channels.CurrentKey(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, 1, cur.Version)
}

func TestChannel_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	shared := directory.NewMemoryStore()
	alice := registered(t, shared, "alice", "")

	first, err := alice.Channels.Create(ctx, "solo")
	require.NoError(t, err)
	again, err := alice.Channels.Create(ctx, "solo")
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestChannel_RefreshAdvancesAfterRemoteRotation(t *testing.T) {
	ctx := context.Background()
	shared := directory.NewMemoryStore()
	alice := registered(t, shared, "alice", "")
	bob := registered(t, shared, "bob", "")
	const ch domain.ChannelID = "team"

	require.NoError(t, alice.Directory.SetChannelMembers(ctx, ch, []domain.UserID{"alice", "bob"}))
	_, err := alice.Channels.Create(ctx, ch)
	require.NoError(t, err)
	_, err = bob.Channels.CurrentKey(ctx, ch)
	require.NoError(t, err)

	_, err = alice.Channels.Rotate(ctx, ch, "")
	require.NoError(t, err)

	cur, err := bob.Channels.CurrentKey(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, 1, cur.Version, "current key is local until refreshed")

	cur, err = bob.Channels.Refresh(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, 2, cur.Version)

	_, rec, err := bob.Messages.SendChannel(ctx, ch, []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.KeyVersion)
}

func TestChannel_StaleRotationIssuesNextVersion(t *testing.T) {
	ctx := context.Background()
	shared := directory.NewMemoryStore()
	alice := registered(t, shared, "alice", "")
	bob := registered(t, shared, "bob", "")
	const ch domain.ChannelID = "team"

	require.NoError(t, alice.Directory.SetChannelMembers(ctx, ch, []domain.UserID{"alice", "bob"}))
	_, err := alice.Channels.Create(ctx, ch)
	require.NoError(t, err)
	_, err = bob.Channels.CurrentKey(ctx, ch)
	require.NoError(t, err)

	a2, err := alice.Channels.Rotate(ctx, ch, "")
	require.NoError(t, err)
	require.Equal(t, 2, a2.Version)
	id2, rec2, err := alice.Messages.SendChannel(ctx, ch, []byte("from v2"))
	require.NoError(t, err)

	// Bob never refreshed after Alice's rotation.
	b3, err := bob.Channels.Rotate(ctx, ch, "")
	require.NoError(t, err)
	assert.Equal(t, 3, b3.Version)

	got, err := bob.Messages.ReadChannel(ctx, ch, id2, rec2)
	require.NoError(t, err)
	assert.Equal(t, "from v2", string(got))

	bobV2, err := bob.Channels.KeyForVersion(ctx, ch, 2)
	require.NoError(t, err)
	assert.Equal(t, a2.Key, bobV2.Key)

	id3, rec3, err := bob.Messages.SendChannel(ctx, ch, []byte("from v3"))
	require.NoError(t, err)
	assert.Equal(t, 3, rec3.KeyVersion)
	got, err = alice.Messages.ReadChannel(ctx, ch, id3, rec3)
	require.NoError(t, err)
	assert.Equal(t, "from v3", string(got))
}

func TestChannel_SecondCreatorAdoptsExistingKey(t *testing.T) {
	ctx := context.Background()
	shared := directory.NewMemoryStore()
	alice := registered(t, shared, "alice", "")
	bob := registered(t, shared, "bob", "")
	const ch domain.ChannelID = "h"

	require.NoError(t, alice.Directory.SetChannelMembers(ctx, ch, []domain.UserID{"alice", "bob"}))
	ak, err := alice.Channels.Create(ctx, ch)
	require.NoError(t, err)
	bk, err := bob.Channels.Create(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, ak, bk)

	id, rec, err := alice.Messages.SendChannel(ctx, ch, []byte("hi"))
	require.NoError(t, err)
	got, err := bob.Messages.ReadChannel(ctx, ch, id, rec)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}

func TestChannel_RelabelledShareIsRejected(t *testing.T) {
	ctx := context.Background()
	shared := directory.NewMemoryStore()
	alice := registered(t, shared, "alice", "")
	bob := registered(t, shared, "bob", "")
	carol := registered(t, shared, "carol", "")
	const ch domain.ChannelID = "general"

	require.NoError(t, alice.Directory.SetChannelMembers(ctx, ch, []domain.UserID{"alice", "bob", "carol"}))
	_, err := alice.Channels.Create(ctx, ch)
	require.NoError(t, err)
	_, err = bob.Channels.CurrentKey(ctx, ch)
	require.NoError(t, err)

	// The directory replays each v1 share under a higher version.
	for _, u := range []domain.UserID{"bob", "carol"} {
		s, err := shared.Share(ctx, ch, u, 1)
		require.NoError(t, err)
		s.Version = 9
		require.NoError(t, shared.PutShares(ctx, ch, []domain.ChannelKeyShare{s}))
	}

	_, err = bob.Channels.Refresh(ctx, ch)
	assert.True(t, errors.Is(err, domain.ErrDecryptionFailed), "got %v", err)
	cur, err := bob.Channels.CurrentKey(ctx, ch)
	require.NoError(t, err)
	assert.Equal(t, 1, cur.Version)
	_, rec, err := bob.Messages.SendChannel(ctx, ch, []byte("still v1"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.KeyVersion)

	_, err = carol.Channels.CurrentKey(ctx, ch)
	assert.True(t, errors.Is(err, domain.ErrDecryptionFailed), "got %v", err)
	_, _, err = carol.Messages.SendChannel(ctx, ch, []byte("x"))
	assert.Error(t, err)
}

func TestDirectMessages(t *testing.T) {
	ctx := context.Background()
	shared := directory.NewMemoryStore()
	alice := registered(t, shared, "alice", testMnemonic)
	bob := registered(t, shared, "bob", "")
	const dm domain.ChannelID = "dm:alice:bob"

	id1, first, err := alice.Messages.SendDM(ctx, dm, "bob", []byte("hi bob"))
	require.NoError(t, err)
	assert.NotEmpty(t, first.SenderEphemeralKey)
	id2, second, err := alice.Messages.SendDM(ctx, dm, "bob", []byte("again"))
	require.NoError(t, err)
	assert.Empty(t, second.SenderEphemeralKey)

	got, err := bob.Messages.ReadDM(ctx, dm, "alice", id1, first)
	require.NoError(t, err)
	assert.Equal(t, "hi bob", string(got))
	got, err = bob.Messages.ReadDM(ctx, dm, "alice", id2, second)
	require.NoError(t, err)
	assert.Equal(t, "again", string(got))

	aliceSess, err := alice.Sessions.GetByPeer("bob")
	require.NoError(t, err)
	bobSess, err := bob.Sessions.GetByPeer("alice")
	require.NoError(t, err)
	assert.Equal(t, aliceSess.SharedKey, bobSess.SharedKey)
	assert.False(t, bobSess.Initiator)

	// Bob's reply reuses the completed session.
	id3, reply, err := bob.Messages.SendDM(ctx, dm, "alice", []byte("hey"))
	require.NoError(t, err)
	assert.Empty(t, reply.SenderEphemeralKey)
	got, err = alice.Messages.ReadDM(ctx, dm, "bob", id3, reply)
	require.NoError(t, err)
	assert.Equal(t, "hey", string(got))

	// A prekey rotation leaves established sessions alone.
	_, err = bob.Prekeys.Rotate(ctx, "bob")
	require.NoError(t, err)
	_, again, err := alice.Messages.SendDM(ctx, dm, "bob", []byte("still here"))
	require.NoError(t, err)
	assert.Empty(t, again.SenderEphemeralKey)
}

func TestDirectMessages_NoSessionNoEphemeral(t *testing.T) {
	ctx := context.Background()
	shared := directory.NewMemoryStore()
	alice := registered(t, shared, "alice", "")
	bob := registered(t, shared, "bob", "")
	const dm domain.ChannelID = "dm:alice:bob"

	_, _, err := alice.Messages.SendDM(ctx, dm, "bob", []byte("first"))
	require.NoError(t, err)
	id, second, err := alice.Messages.SendDM(ctx, dm, "bob", []byte("second"))
	require.NoError(t, err)

	_, err = bob.Messages.ReadDM(ctx, dm, "alice", id, second)
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound), "got %v", err)
}

func TestDirectMessages_ResetStartsNewHandshake(t *testing.T) {
	ctx := context.Background()
	shared := directory.NewMemoryStore()
	alice := registered(t, shared, "alice", "")
	registered(t, shared, "bob", "")
	const dm domain.ChannelID = "dm:alice:bob"

	_, _, err := alice.Messages.SendDM(ctx, dm, "bob", []byte("one"))
	require.NoError(t, err)
	before, err := alice.Sessions.Get(dm)
	require.NoError(t, err)

	require.NoError(t, alice.Sessions.Reset(dm))
	_, err = alice.Sessions.GetByPeer("bob")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound), "got %v", err)
	require.NoError(t, alice.Sessions.Reset(dm))

	_, rec, err := alice.Messages.SendDM(ctx, dm, "bob", []byte("two"))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.SenderEphemeralKey)
	after, err := alice.Sessions.Get(dm)
	require.NoError(t, err)
	assert.NotEqual(t, before.SharedKey, after.SharedKey)
}

func TestDirectMessages_UnregisteredPeer(t *testing.T) {
	shared := directory.NewMemoryStore()
	alice := registered(t, shared, "alice", "")

	_, _, err := alice.Messages.SendDM(context.Background(), "dm:alice:nobody", "nobody", []byte("x"))
	assert.True(t, errors.Is(err, domain.ErrNoPrekeyBundle), "got %v", err)
}

func TestIdentity_MnemonicRecovery(t *testing.T) {
	ctx := context.Background()
	shared := directory.NewMemoryStore()
	first := device(t, shared, "alice")
	phrase, fp, err := first.Identity.Create(ctx)
	require.NoError(t, err)

	exported, err := first.Identity.ExportMnemonic()
	require.NoError(t, err)
	assert.Equal(t, phrase, exported)

	second := device(t, shared, "alice")
	restored, err := second.Identity.Restore(ctx, phrase)
	require.NoError(t, err)
	assert.Equal(t, fp, restored)

	_, err = second.Identity.Restore(ctx, "abandon abandon abandon")
	assert.True(t, errors.Is(err, domain.ErrInvalidMnemonic), "got %v", err)

	require.NoError(t, second.Identity.Reset())
	_, err = second.Identity.Load()
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound), "got %v", err)
}

func TestIdentity_FromSignatureHasNoMnemonic(t *testing.T) {
	ctx := context.Background()
	w := device(t, directory.NewMemoryStore(), "alice")
	sig := bytes.Repeat([]byte{7}, 65)

	fp1, err := w.Identity.FromSignature(ctx, sig)
	require.NoError(t, err)
	fp2, err := device(t, directory.NewMemoryStore(), "alice").Identity.FromSignature(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)

	_, err = w.Identity.ExportMnemonic()
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound), "got %v", err)
}

func TestPrekeys_RotateReplacesSecret(t *testing.T) {
	ctx := context.Background()
	shared := directory.NewMemoryStore()
	w := registered(t, shared, "alice", "")

	s1, err := w.Prekeys.Secret()
	require.NoError(t, err)
	b2, err := w.Prekeys.Rotate(ctx, "alice")
	require.NoError(t, err)
	s2, err := w.Prekeys.Secret()
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)

	published, err := shared.PrekeyBundle(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, b2, published)

	local, err := w.Prekeys.Bundle()
	require.NoError(t, err)
	assert.Equal(t, b2, local)
}

func TestNewWire_OverHTTP(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(directory.NewServer(directory.NewMemoryStore(), directory.ServerOptions{}).Handler())
	t.Cleanup(srv.Close)

	wire := func(user string) *app.Wire {
		w, err := app.NewWire(config.Client{
			Home:         t.TempDir(),
			UserID:       user,
			DirectoryURL: srv.URL,
			DeviceKey:    "file",
			HTTPTimeout:  5 * time.Second,
		}, nil)
		require.NoError(t, err)
		_, _, err = w.Identity.Create(ctx)
		require.NoError(t, err)
		_, err = w.Register(ctx)
		require.NoError(t, err)
		return w
	}
	alice, bob := wire("alice"), wire("bob")

	require.NoError(t, alice.Directory.SetChannelMembers(ctx, "general", []domain.UserID{"alice", "bob"}))
	_, err := alice.Channels.Create(ctx, "general")
	require.NoError(t, err)
	id, rec, err := alice.Messages.SendChannel(ctx, "general", []byte("over http"))
	require.NoError(t, err)
	got, err := bob.Messages.ReadChannel(ctx, "general", id, rec)
	require.NoError(t, err)
	assert.Equal(t, "over http", string(got))

	id, rec, err = bob.Messages.SendDM(ctx, "dm:alice:bob", "alice", []byte("psst"))
	require.NoError(t, err)
	got, err = alice.Messages.ReadDM(ctx, "dm:alice:bob", "bob", id, rec)
	require.NoError(t, err)
	assert.Equal(t, "psst", string(got))
}

func TestNewWire_RequiresUser(t *testing.T) {
	_, err := app.NewWire(config.Client{Home: t.TempDir()}, nil)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", app.ParseLevel("debug").String())
	assert.Equal(t, "WARN", app.ParseLevel(" Warning").String())
	assert.Equal(t, "INFO", app.ParseLevel("bogus").String())
}
