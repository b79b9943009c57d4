package interfaces

import (
	"context"

	domaintypes "sealroom/internal/domain/types"
)

// Directory is the server-side collaborator that stores public key material
// and sealed channel key shares. Implementations must make every fetch
// idempotent; repeated identical calls are harmless.
type Directory interface {
	// PublishIdentity registers or overwrites the user's public key bundle.
	PublishIdentity(ctx context.Context, user domaintypes.UserID, bundle domaintypes.PublicKeyBundle) error
	// PublishPrekey stores the signed prekey next to the published identity.
	PublishPrekey(ctx context.Context, user domaintypes.UserID, prekey domaintypes.SignedPrekey) error
	// FetchPrekeyBundle returns the full bundle or an error of kind NoPrekeyBundle.
	FetchPrekeyBundle(ctx context.Context, user domaintypes.UserID) (domaintypes.PrekeyBundle, error)

	// PublishChannelShares upserts shares keyed by (channel, user, version).
	PublishChannelShares(ctx context.Context, channel domaintypes.ChannelID, shares []domaintypes.ChannelKeyShare) error
	// FetchOwnChannelShare returns the caller's share for version, or the
	// latest one when version is 0. Absence is an error of kind KeyNotFound.
	FetchOwnChannelShare(ctx context.Context, channel domaintypes.ChannelID, version int) (domaintypes.ChannelKeyShare, error)
	// FetchChannelMembers returns every current member with its identity key.
	FetchChannelMembers(ctx context.Context, channel domaintypes.ChannelID) ([]domaintypes.Member, error)
}
