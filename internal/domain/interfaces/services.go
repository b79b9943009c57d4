package interfaces

import (
	"context"

	domaintypes "sealroom/internal/domain/types"
)

// IdentityService creates, restores and inspects the local identity.
type IdentityService interface {
	Create(ctx context.Context) (mnemonic string, fp domaintypes.Fingerprint, err error)
	Restore(ctx context.Context, mnemonic string) (domaintypes.Fingerprint, error)
	FromSignature(ctx context.Context, signature []byte) (domaintypes.Fingerprint, error)
	Load() (domaintypes.Identity, error)
	Publish(ctx context.Context, user domaintypes.UserID) error
}

// PrekeyService manages the signed prekey used by DM handshakes.
type PrekeyService interface {
	Rotate(ctx context.Context, user domaintypes.UserID) (domaintypes.PrekeyBundle, error)
	Secret() (domaintypes.X25519Private, error)
}

// ChannelService owns channel group keys.
type ChannelService interface {
	Create(ctx context.Context, channel domaintypes.ChannelID) (domaintypes.ChannelKey, error)
	AddMember(ctx context.Context, channel domaintypes.ChannelID, user domaintypes.UserID) (domaintypes.ChannelKeyShare, error)
	Rotate(ctx context.Context, channel domaintypes.ChannelID, removed domaintypes.UserID) (domaintypes.ChannelKey, error)
	CurrentKey(ctx context.Context, channel domaintypes.ChannelID) (domaintypes.ChannelKey, error)
	KeyForVersion(ctx context.Context, channel domaintypes.ChannelID, version int) (domaintypes.ChannelKey, error)
	WithSendLock(channel domaintypes.ChannelID, fn func() error) error
}

// SessionService establishes and looks up DM sessions.
type SessionService interface {
	Initiate(ctx context.Context, channel domaintypes.ChannelID, peer domaintypes.UserID) (domaintypes.DMSession, error)
	Complete(
		ctx context.Context,
		channel domaintypes.ChannelID,
		sender domaintypes.UserID,
		senderEphemeral domaintypes.X25519Public,
	) (domaintypes.DMSession, error)
	Get(channel domaintypes.ChannelID) (domaintypes.DMSession, error)
	GetByPeer(peer domaintypes.UserID) (domaintypes.DMSession, error)
	MarkEphemeralSent(channel domaintypes.ChannelID) error
	Reset(channel domaintypes.ChannelID) error
}

// MessageService encrypts and decrypts channel and DM messages.
type MessageService interface {
	SendChannel(ctx context.Context, channel domaintypes.ChannelID, plaintext []byte) (
		domaintypes.MessageID, domaintypes.MessageRecord, error)
	ReadChannel(
		ctx context.Context,
		channel domaintypes.ChannelID,
		id domaintypes.MessageID,
		record domaintypes.MessageRecord,
	) ([]byte, error)
	SendDM(ctx context.Context, channel domaintypes.ChannelID, peer domaintypes.UserID, plaintext []byte) (
		domaintypes.MessageID, domaintypes.MessageRecord, error)
	ReadDM(
		ctx context.Context,
		channel domaintypes.ChannelID,
		sender domaintypes.UserID,
		id domaintypes.MessageID,
		record domaintypes.MessageRecord,
	) ([]byte, error)
}
