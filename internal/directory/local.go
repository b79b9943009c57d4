package directory

import (
	"context"

	"sealroom/internal/domain"
)

// Local implements domain.Directory directly over a Store, acting as User.
// It skips HTTP and is meant for single-process setups and tests.
type Local struct {
	Store Store
	User  domain.UserID
}

var _ domain.Directory = Local{}

func (l Local) PublishIdentity(ctx context.Context, user domain.UserID, bundle domain.PublicKeyBundle) error {
	if user != l.User {
		return errForbidden
	}
	return l.Store.PutIdentity(ctx, user, bundle)
}

func (l Local) PublishPrekey(ctx context.Context, user domain.UserID, prekey domain.SignedPrekey) error {
	if user != l.User {
		return errForbidden
	}
	return l.Store.PutPrekey(ctx, user, prekey)
}

func (l Local) FetchPrekeyBundle(ctx context.Context, user domain.UserID) (domain.PrekeyBundle, error) {
	return l.Store.PrekeyBundle(ctx, user)
}

func (l Local) PublishChannelShares(ctx context.Context, channel domain.ChannelID, shares []domain.ChannelKeyShare) error {
	return l.Store.PutShares(ctx, channel, shares)
}

func (l Local) FetchOwnChannelShare(ctx context.Context, channel domain.ChannelID, version int) (domain.ChannelKeyShare, error) {
	return l.Store.Share(ctx, channel, l.User, version)
}

func (l Local) FetchChannelMembers(ctx context.Context, channel domain.ChannelID) ([]domain.Member, error) {
	return l.Store.Members(ctx, channel)
}

// SetChannelMembers replaces the channel's member list.
func (l Local) SetChannelMembers(ctx context.Context, channel domain.ChannelID, users []domain.UserID) error {
	return l.Store.PutMembers(ctx, channel, users)
}
