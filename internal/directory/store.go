package directory

import (
	"context"
	"fmt"

	"sealroom/internal/domain"
)

// Store is the directory's persistence.
type Store interface {
	PutIdentity(ctx context.Context, user domain.UserID, bundle domain.PublicKeyBundle) error
	// PutPrekey fails with InvalidArgument when user has no identity yet.
	PutPrekey(ctx context.Context, user domain.UserID, prekey domain.SignedPrekey) error
	// PrekeyBundle fails with NoPrekeyBundle unless both identity and prekey exist.
	PrekeyBundle(ctx context.Context, user domain.UserID) (domain.PrekeyBundle, error)

	// PutMembers replaces the member list of channel.
	PutMembers(ctx context.Context, channel domain.ChannelID, users []domain.UserID) error
	// Members lists members that have a published identity, ordered by user id.
	Members(ctx context.Context, channel domain.ChannelID) ([]domain.Member, error)

	PutShares(ctx context.Context, channel domain.ChannelID, shares []domain.ChannelKeyShare) error
	// Share returns user's share of version, or the newest when version is 0.
	Share(ctx context.Context, channel domain.ChannelID, user domain.UserID, version int) (domain.ChannelKeyShare, error)

	Close() error
}

func errNoIdentity(user domain.UserID) error {
	return domain.NewError(domain.KindInvalidArgument, fmt.Sprintf("no identity published for %s", user))
}

func errNoBundle(user domain.UserID) error {
	return domain.Wrap(domain.KindNoPrekeyBundle, fmt.Sprintf("user %s", user), domain.ErrNoPrekeyBundle)
}

func errNoShare(channel domain.ChannelID, user domain.UserID, version int) error {
	if version == 0 {
		return domain.NewError(domain.KindKeyNotFound, fmt.Sprintf("no share for %s in %s", user, channel))
	}
	return domain.NewError(domain.KindKeyNotFound, fmt.Sprintf("no share v%d for %s in %s", version, user, channel))
}

func validShares(shares []domain.ChannelKeyShare) error {
	for _, s := range shares {
		if s.UserID == "" || s.Version < 1 || len(s.EncryptedKey) == 0 {
			return domain.NewError(domain.KindInvalidArgument, "share needs a user, a version >= 1 and a sealed key")
		}
	}
	return nil
}
