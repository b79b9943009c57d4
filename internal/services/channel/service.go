package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"sealroom/internal/domain"
	"sealroom/internal/keystore"
	"sealroom/internal/protocol/groupkey"
	"sealroom/internal/util/keylock"
)

type pointer struct {
	Version int `json:"version"`
}

// Service manages channel keys for the local user.
type Service struct {
	self  domain.UserID
	ids   domain.IdentityService
	store domain.SecretStore
	dir   domain.Directory
	log   *slog.Logger

	locks keylock.Map[domain.ChannelID]

	// commitMu guards moves of the current-version pointer.
	commitMu sync.Mutex
}

// New returns a channel service acting as self.
func New(
	self domain.UserID,
	ids domain.IdentityService,
	store domain.SecretStore,
	dir domain.Directory,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{self: self, ids: ids, store: store, dir: dir, log: log}
}

// WithSendLock runs fn while holding the channel's send/rotate lock.
func (s *Service) WithSendLock(channel domain.ChannelID, fn func() error) error {
	return s.locks.Do(channel, fn)
}

// Create issues version 1 for channel and seals it to every listed member.
// A channel that already has a key, here or in our share from the directory,
// is returned unchanged.
//
// Steps:
//  1. Reuse the local key, else adopt our latest share from the directory.
//  2. Fetch the member list and make sure we are on it.
//  3. Generate the key and one share per member.
//  4. Store the key, publish the shares, then mark version 1 current.
func (s *Service) Create(ctx context.Context, channel domain.ChannelID) (domain.ChannelKey, error) {
	var out domain.ChannelKey
	err := s.WithSendLock(channel, func() error {
		if cur, err := s.localCurrent(channel); err == nil {
			out = cur
			return nil
		} else if !errors.Is(err, domain.ErrKeyNotFound) {
			return err
		}
		if cur, err := s.fetch(ctx, channel, 0); err == nil {
			s.log.Info("channel key adopted", "channel_id", channel.String(), "version", cur.Version)
			out = cur
			return nil
		} else if !errors.Is(err, domain.ErrKeyNotFound) {
			return err
		}

		id, members, err := s.members(ctx, channel)
		if err != nil {
			return err
		}
		key, shares, err := groupkey.CreateChannelKey(id.Encryption, members)
		if err != nil {
			return err
		}
		if err := s.commit(ctx, channel, key, shares); err != nil {
			return err
		}
		s.log.Info("channel key created", "channel_id", channel.String(), "members", len(shares))
		out = key
		return nil
	})
	return out, err
}

// AddMember seals the current key to a joining member. The version is unchanged.
func (s *Service) AddMember(ctx context.Context, channel domain.ChannelID, user domain.UserID) (domain.ChannelKeyShare, error) {
	var out domain.ChannelKeyShare
	err := s.WithSendLock(channel, func() error {
		key, err := s.localCurrent(channel)
		if err != nil {
			return err
		}
		id, members, err := s.members(ctx, channel)
		if err != nil {
			return err
		}
		var member *domain.Member
		for i := range members {
			if members[i].UserID == user {
				member = &members[i]
				break
			}
		}
		if member == nil {
			return domain.NewError(domain.KindInvalidArgument, fmt.Sprintf("%s is not listed as a member of %s", user, channel))
		}

		share, err := groupkey.SealShare(key, id.Encryption, *member)
		if err != nil {
			return err
		}
		if err := s.dir.PublishChannelShares(ctx, channel, []domain.ChannelKeyShare{share}); err != nil {
			return fmt.Errorf("publish share: %w", err)
		}
		s.log.Info("channel member added", "channel_id", channel.String(), "user_id", user.String(), "version", key.Version)
		out = share
		return nil
	})
	return out, err
}

// Rotate issues current+1 to every member except removed. Current is the
// higher of the local version and our latest share in the directory, so a
// device that missed a rotation does not reissue a version. The removed
// member keeps whatever earlier versions it already holds.
func (s *Service) Rotate(ctx context.Context, channel domain.ChannelID, removed domain.UserID) (domain.ChannelKey, error) {
	var out domain.ChannelKey
	err := s.WithSendLock(channel, func() error {
		if _, err := s.fetch(ctx, channel, 0); err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
			return err
		}
		cur, err := s.localCurrent(channel)
		if err != nil {
			return err
		}
		id, members, err := s.members(ctx, channel)
		if err != nil {
			return err
		}
		next, shares, err := groupkey.RotateKey(cur, id.Encryption, groupkey.Without(members, removed))
		if err != nil {
			return err
		}
		if err := s.commit(ctx, channel, next, shares); err != nil {
			return err
		}
		s.log.Info("channel key rotated", "channel_id", channel.String(), "version", next.Version, "removed_id", removed.String())
		out = next
		return nil
	})
	return out, err
}

// CurrentKey returns the current key, fetching our latest share when this
// device holds none.
func (s *Service) CurrentKey(ctx context.Context, channel domain.ChannelID) (domain.ChannelKey, error) {
	key, err := s.localCurrent(channel)
	if !errors.Is(err, domain.ErrKeyNotFound) {
		return key, err
	}
	return s.fetch(ctx, channel, 0)
}

// KeyForVersion returns one key version: local copy first, then our share of
// that version from the directory. KeyNotFound when neither exists.
func (s *Service) KeyForVersion(ctx context.Context, channel domain.ChannelID, version int) (domain.ChannelKey, error) {
	if version < groupkey.FirstVersion {
		return domain.ChannelKey{}, domain.NewError(domain.KindInvalidArgument, fmt.Sprintf("key version %d", version))
	}
	key, err := keystore.GetJSON[domain.ChannelKey](s.store, keystore.ChannelVersionID(channel, version))
	if !errors.Is(err, domain.ErrKeyNotFound) {
		return key, err
	}
	return s.fetch(ctx, channel, version)
}

// Refresh pulls our latest share and advances the current version if it is
// newer than what this device holds.
func (s *Service) Refresh(ctx context.Context, channel domain.ChannelID) (domain.ChannelKey, error) {
	return s.fetch(ctx, channel, 0)
}

func (s *Service) localCurrent(channel domain.ChannelID) (domain.ChannelKey, error) {
	p, err := keystore.GetJSON[pointer](s.store, keystore.ChannelCurrentID(channel))
	if err != nil {
		return domain.ChannelKey{}, err
	}
	return keystore.GetJSON[domain.ChannelKey](s.store, keystore.ChannelVersionID(channel, p.Version))
}

// fetch opens our share of version (0 for latest) and caches it locally.
func (s *Service) fetch(ctx context.Context, channel domain.ChannelID, version int) (domain.ChannelKey, error) {
	share, err := s.dir.FetchOwnChannelShare(ctx, channel, version)
	if err != nil {
		return domain.ChannelKey{}, err
	}
	if version != 0 && share.Version != version {
		return domain.ChannelKey{}, domain.NewError(domain.KindKeyNotFound, fmt.Sprintf("directory returned version %d, want %d", share.Version, version))
	}
	id, err := s.ids.Load()
	if err != nil {
		return domain.ChannelKey{}, err
	}
	key, err := groupkey.DecryptShare(share, id.Encryption.Private)
	if err != nil {
		return domain.ChannelKey{}, err
	}
	// A version already held locally is never replaced.
	held, err := keystore.GetJSON[domain.ChannelKey](s.store, keystore.ChannelVersionID(channel, key.Version))
	switch {
	case err == nil:
		if held.Key != key.Key {
			s.log.Warn("directory share differs from held key", "channel_id", channel.String(), "version", key.Version)
		}
		key = held
	case errors.Is(err, domain.ErrKeyNotFound):
		if err := keystore.PutJSON(s.store, keystore.ChannelVersionID(channel, key.Version), key); err != nil {
			return domain.ChannelKey{}, err
		}
	default:
		return domain.ChannelKey{}, err
	}
	if err := s.advance(channel, key.Version); err != nil {
		return domain.ChannelKey{}, err
	}
	s.log.Debug("channel key fetched", "channel_id", channel.String(), "version", key.Version)
	return key, nil
}

// commit stores key, publishes its shares and only then makes it current.
func (s *Service) commit(ctx context.Context, channel domain.ChannelID, key domain.ChannelKey, shares []domain.ChannelKeyShare) error {
	if err := keystore.PutJSON(s.store, keystore.ChannelVersionID(channel, key.Version), key); err != nil {
		return err
	}
	if err := s.dir.PublishChannelShares(ctx, channel, shares); err != nil {
		return fmt.Errorf("publish shares: %w", err)
	}
	return s.advance(channel, key.Version)
}

// advance moves the current pointer forward. It never moves backwards.
func (s *Service) advance(channel domain.ChannelID, version int) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	p, err := keystore.GetJSON[pointer](s.store, keystore.ChannelCurrentID(channel))
	switch {
	case err == nil && p.Version >= version:
		return nil
	case err != nil && !errors.Is(err, domain.ErrKeyNotFound):
		return err
	}
	return keystore.PutJSON(s.store, keystore.ChannelCurrentID(channel), pointer{Version: version})
}

// members returns our identity and the channel's members, adding ourselves
// when the directory does not list us.
func (s *Service) members(ctx context.Context, channel domain.ChannelID) (domain.Identity, []domain.Member, error) {
	id, err := s.ids.Load()
	if err != nil {
		return domain.Identity{}, nil, err
	}
	members, err := s.dir.FetchChannelMembers(ctx, channel)
	if err != nil {
		return domain.Identity{}, nil, fmt.Errorf("fetch members: %w", err)
	}
	for _, m := range members {
		if m.UserID == s.self {
			return id, members, nil
		}
	}
	if s.self != "" {
		members = append(members, domain.Member{UserID: s.self, PublicKey: id.Encryption.Public})
	}
	return id, members, nil
}

// Compile-time assertion that Service implements domain.ChannelService.
var _ domain.ChannelService = (*Service)(nil)
