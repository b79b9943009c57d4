package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"sealroom/internal/domain"
	"sealroom/internal/keystore"
	"sealroom/internal/protocol/x3dh"
	"sealroom/internal/util/keylock"
)

// Version is the key version carried by DM envelopes.
const Version = 1

// Service performs the DM handshake and persists sessions.
//
// This service handles:
//   - Retrieving our own identity keys and prekey secret.
//   - Fetching the peer's prekey bundle from the directory.
//   - Running the handshake as initiator or recipient.
//   - Persisting the resulting session for later message encryption.
type Service struct {
	ids     domain.IdentityService
	prekeys domain.PrekeyService
	store   domain.SecretStore
	dir     domain.Directory
	log     *slog.Logger
	now     func() time.Time

	locks keylock.Map[domain.ChannelID]
}

// New constructs a session service.
func New(
	ids domain.IdentityService,
	prekeys domain.PrekeyService,
	store domain.SecretStore,
	dir domain.Directory,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{ids: ids, prekeys: prekeys, store: store, dir: dir, log: log, now: time.Now}
}

// Initiate returns the session for channel, running the handshake against
// peer's bundle when none exists.
//
// Steps:
//  1. Reuse a stored session if there is one.
//  2. Load our identity and fetch the peer's bundle.
//  3. Verify the bundle and derive the shared key.
//  4. Store the session with the ephemeral key pending for the first envelope.
func (s *Service) Initiate(ctx context.Context, channel domain.ChannelID, peer domain.UserID) (domain.DMSession, error) {
	var out domain.DMSession
	err := s.locks.Do(channel, func() error {
		if sess, err := s.Get(channel); err == nil {
			out = sess
			return nil
		} else if !errors.Is(err, domain.ErrKeyNotFound) {
			return err
		}

		id, err := s.ids.Load()
		if err != nil {
			return err
		}
		bundle, err := s.dir.FetchPrekeyBundle(ctx, peer)
		if err != nil {
			return fmt.Errorf("fetch bundle for %s: %w", peer, err)
		}
		shared, eph, err := x3dh.Initiate(id, bundle)
		if err != nil {
			return err
		}

		sess := domain.DMSession{
			ChannelID:        channel,
			PeerUserID:       peer,
			SharedKey:        shared,
			Version:          Version,
			Initiator:        true,
			PendingEphemeral: &eph,
			CreatedUTC:       s.now().UTC().Unix(),
		}
		if err := s.save(sess); err != nil {
			return err
		}
		s.log.Info("dm session initiated", "channel_id", channel.String(), "peer_id", peer.String())
		out = sess
		return nil
	})
	return out, err
}

// Complete returns the session for channel, deriving it from the sender's
// ephemeral key when none exists. It runs at most once per channel.
func (s *Service) Complete(
	ctx context.Context,
	channel domain.ChannelID,
	sender domain.UserID,
	senderEphemeral domain.X25519Public,
) (domain.DMSession, error) {
	var out domain.DMSession
	err := s.locks.Do(channel, func() error {
		if sess, err := s.Get(channel); err == nil {
			out = sess
			return nil
		} else if !errors.Is(err, domain.ErrKeyNotFound) {
			return err
		}
		if senderEphemeral.IsZero() {
			return domain.NewError(domain.KindInvalidArgument, "first message carries no ephemeral key")
		}

		id, err := s.ids.Load()
		if err != nil {
			return err
		}
		prekeySecret, err := s.prekeys.Secret()
		if err != nil {
			return err
		}
		// The sender's identity key comes from its own published, signed bundle.
		bundle, err := s.dir.FetchPrekeyBundle(ctx, sender)
		if err != nil {
			return fmt.Errorf("fetch bundle for %s: %w", sender, err)
		}
		if !x3dh.VerifyPrekey(bundle.SigningPublicKey, bundle.PrekeyPublic, bundle.PrekeySignature) {
			return domain.ErrInvalidPrekeySignature
		}
		shared, err := x3dh.Complete(id, prekeySecret, bundle.IdentityPublicKey, senderEphemeral)
		if err != nil {
			return err
		}

		sess := domain.DMSession{
			ChannelID:  channel,
			PeerUserID: sender,
			SharedKey:  shared,
			Version:    Version,
			CreatedUTC: s.now().UTC().Unix(),
		}
		if err := s.save(sess); err != nil {
			return err
		}
		s.log.Info("dm session completed", "channel_id", channel.String(), "peer_id", sender.String())
		out = sess
		return nil
	})
	return out, err
}

// Get returns the session stored for channel.
func (s *Service) Get(channel domain.ChannelID) (domain.DMSession, error) {
	return keystore.GetJSON[domain.DMSession](s.store, keystore.DMChannelID(channel))
}

// GetByPeer returns the session stored for peer.
func (s *Service) GetByPeer(peer domain.UserID) (domain.DMSession, error) {
	return keystore.GetJSON[domain.DMSession](s.store, keystore.DMPeerID(peer))
}

// MarkEphemeralSent clears the pending ephemeral key once the first envelope
// carrying it has been produced.
func (s *Service) MarkEphemeralSent(channel domain.ChannelID) error {
	return s.locks.Do(channel, func() error {
		sess, err := s.Get(channel)
		if err != nil {
			return err
		}
		if sess.PendingEphemeral == nil {
			return nil
		}
		sess.PendingEphemeral = nil
		return s.save(sess)
	})
}

// Reset forgets the session for channel. The next message starts a new handshake.
func (s *Service) Reset(channel domain.ChannelID) error {
	return s.locks.Do(channel, func() error {
		sess, err := s.Get(channel)
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.store.Delete(keystore.DMChannelID(channel)); err != nil {
			return err
		}
		if err := s.store.Delete(keystore.DMPeerID(sess.PeerUserID)); err != nil {
			return err
		}
		s.log.Info("dm session reset", "channel_id", channel.String())
		return nil
	})
}

func (s *Service) save(sess domain.DMSession) error {
	if err := keystore.PutJSON(s.store, keystore.DMChannelID(sess.ChannelID), sess); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if err := keystore.PutJSON(s.store, keystore.DMPeerID(sess.PeerUserID), sess); err != nil {
		return fmt.Errorf("store peer session: %w", err)
	}
	return nil
}

// Compile-time assertion that Service implements domain.SessionService.
var _ domain.SessionService = (*Service)(nil)
