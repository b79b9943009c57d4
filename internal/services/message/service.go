package message

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"sealroom/internal/domain"
	"sealroom/internal/protocol/envelope"
)

// Service turns plaintext into message records and back.
//
// High-level flow:
//   - Channel send: under the channel's send lock, take the current key,
//     encrypt, and return the record to persist.
//   - Channel read: find the key version named by the record, fetching our
//     share when it is not held, and decrypt.
//   - DM send: reuse or initiate the session; the first envelope carries the
//     handshake's ephemeral key.
//   - DM read: complete the handshake from the envelope's ephemeral key when no
//     session exists, then decrypt.
type Service struct {
	channels domain.ChannelService
	sessions domain.SessionService
	log      *slog.Logger
	newID    func() domain.MessageID
}

// New constructs a message service.
func New(channels domain.ChannelService, sessions domain.SessionService, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		channels: channels,
		sessions: sessions,
		log:      log,
		newID:    func() domain.MessageID { return domain.MessageID(uuid.NewString()) },
	}
}

// SendChannel encrypts plaintext under the channel's current key.
func (s *Service) SendChannel(ctx context.Context, channel domain.ChannelID, plaintext []byte) (domain.MessageID, domain.MessageRecord, error) {
	var (
		id  domain.MessageID
		rec domain.MessageRecord
	)
	err := s.channels.WithSendLock(channel, func() error {
		key, err := s.channels.CurrentKey(ctx, channel)
		if err != nil {
			return err
		}
		id = s.newID()
		env, err := envelope.EncryptMessage(plaintext, key.Key, id, key.Version, nil)
		if err != nil {
			return err
		}
		rec = envelope.ToRecord(env)
		return nil
	})
	if err != nil {
		return "", domain.MessageRecord{}, fmt.Errorf("send to channel: %w", err)
	}
	s.log.Debug("channel message sealed", "channel_id", channel.String(), "message_id", id.String(), "key_version", rec.KeyVersion)
	return id, rec, nil
}

// ReadChannel decrypts a channel message record.
//
// A missing key version is retried exactly once after initializing the
// channel key from the directory. A failed decryption is final.
func (s *Service) ReadChannel(
	ctx context.Context,
	channel domain.ChannelID,
	id domain.MessageID,
	record domain.MessageRecord,
) ([]byte, error) {
	env, err := envelope.FromRecord(record)
	if err != nil {
		return nil, err
	}

	key, err := s.channels.KeyForVersion(ctx, channel, env.KeyVersion())
	if errors.Is(err, domain.ErrKeyNotFound) {
		s.log.Debug("channel key missing, initializing", "channel_id", channel.String(), "key_version", env.KeyVersion())
		if _, ierr := s.channels.CurrentKey(ctx, channel); ierr != nil && !errors.Is(ierr, domain.ErrKeyNotFound) {
			return nil, ierr
		}
		key, err = s.channels.KeyForVersion(ctx, channel, env.KeyVersion())
	}
	if err != nil {
		return nil, err
	}

	pt, err := envelope.DecryptMessage(env, key.Key, id)
	if err != nil {
		s.log.Warn("channel message did not decrypt", "channel_id", channel.String(), "message_id", id.String(), "key_version", env.KeyVersion())
		return nil, err
	}
	return pt, nil
}

// SendDM encrypts plaintext for peer on the DM channel.
func (s *Service) SendDM(
	ctx context.Context,
	channel domain.ChannelID,
	peer domain.UserID,
	plaintext []byte,
) (domain.MessageID, domain.MessageRecord, error) {
	sess, err := s.sessions.Initiate(ctx, channel, peer)
	if err != nil {
		return "", domain.MessageRecord{}, fmt.Errorf("dm session: %w", err)
	}

	id := s.newID()
	env, err := envelope.EncryptMessage(plaintext, sess.SharedKey, id, sess.Version, sess.PendingEphemeral)
	if err != nil {
		return "", domain.MessageRecord{}, err
	}
	if sess.PendingEphemeral != nil {
		if err := s.sessions.MarkEphemeralSent(channel); err != nil {
			return "", domain.MessageRecord{}, err
		}
	}
	s.log.Debug("dm sealed", "channel_id", channel.String(), "message_id", id.String(), "first", sess.PendingEphemeral != nil)
	return id, envelope.ToRecord(env), nil
}

// ReadDM decrypts a DM record from sender.
func (s *Service) ReadDM(
	ctx context.Context,
	channel domain.ChannelID,
	sender domain.UserID,
	id domain.MessageID,
	record domain.MessageRecord,
) ([]byte, error) {
	env, err := envelope.FromRecord(record)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(channel)
	if errors.Is(err, domain.ErrKeyNotFound) {
		if env.Ephemeral == nil {
			return nil, domain.Wrap(domain.KindKeyNotFound, "no session and the message carries no ephemeral key", err)
		}
		sess, err = s.sessions.Complete(ctx, channel, sender, *env.Ephemeral)
	}
	if err != nil {
		return nil, err
	}

	pt, err := envelope.DecryptMessage(env, sess.SharedKey, id)
	if err != nil {
		s.log.Warn("dm did not decrypt", "channel_id", channel.String(), "message_id", id.String())
		return nil, err
	}
	return pt, nil
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
