// Package groupkey issues, shares and rotates channel group keys.
//
// It is pure: callers persist the returned key and publish the shares.
package groupkey

import (
	"encoding/binary"
	"fmt"

	"sealroom/internal/crypto"
	"sealroom/internal/domain"
	"sealroom/internal/util/memzero"
)

// FirstVersion is the version of a freshly created channel key.
const FirstVersion = 1

// A sealed share holds version (4 bytes, big endian) || key, so the version
// label next to the box cannot be changed without detection.
const versionBytes = 4

// CreateChannelKey issues version 1 of a new channel key and seals it to every member.
func CreateChannelKey(sender domain.X25519KeyPair, members []domain.Member) (domain.ChannelKey, []domain.ChannelKeyShare, error) {
	return issue(FirstVersion, sender, members)
}

// RotateKey issues current.Version+1 and seals it to the remaining members only.
// Shares of earlier versions are left untouched.
func RotateKey(current domain.ChannelKey, sender domain.X25519KeyPair, remaining []domain.Member) (domain.ChannelKey, []domain.ChannelKeyShare, error) {
	if current.Version < FirstVersion {
		return domain.ChannelKey{}, nil, domain.NewError(domain.KindInvalidArgument, fmt.Sprintf("rotate from version %d", current.Version))
	}
	return issue(current.Version+1, sender, remaining)
}

// SealShare seals an existing key version to one member. The version is unchanged.
func SealShare(key domain.ChannelKey, sender domain.X25519KeyPair, member domain.Member) (domain.ChannelKeyShare, error) {
	if member.UserID == "" || member.PublicKey.IsZero() {
		return domain.ChannelKeyShare{}, domain.NewError(domain.KindInvalidArgument, "member needs a user id and public key")
	}
	if key.Version < FirstVersion {
		return domain.ChannelKeyShare{}, domain.NewError(domain.KindInvalidArgument, fmt.Sprintf("share of key version %d", key.Version))
	}
	payload := make([]byte, versionBytes+len(key.Key))
	binary.BigEndian.PutUint32(payload, uint32(key.Version))
	copy(payload[versionBytes:], key.Key[:])
	defer memzero.Zero(payload)

	sealed, err := crypto.SealTo(payload, member.PublicKey, sender.Private)
	if err != nil {
		return domain.ChannelKeyShare{}, err
	}
	return domain.ChannelKeyShare{
		UserID:          member.UserID,
		EncryptedKey:    sealed,
		Version:         key.Version,
		SenderPublicKey: sender.Public,
	}, nil
}

// DecryptShare opens a share addressed to own. A wrong key, a corrupt share or
// a version label that differs from the sealed version is DecryptionFailed.
func DecryptShare(share domain.ChannelKeyShare, own domain.X25519Private) (domain.ChannelKey, error) {
	raw, err := crypto.OpenFrom(share.EncryptedKey, share.SenderPublicKey, own)
	if err != nil {
		return domain.ChannelKey{}, err
	}
	defer memzero.Zero(raw)
	var k domain.SymmetricKey
	if len(raw) != versionBytes+len(k) {
		return domain.ChannelKey{}, domain.NewError(domain.KindDecryptionFailed, "share holds a malformed key")
	}
	sealedVersion := binary.BigEndian.Uint32(raw[:versionBytes])
	if share.Version < FirstVersion || uint32(share.Version) != sealedVersion {
		return domain.ChannelKey{}, domain.NewError(domain.KindDecryptionFailed,
			fmt.Sprintf("share labelled version %d seals version %d", share.Version, sealedVersion))
	}
	copy(k[:], raw[versionBytes:])
	return domain.ChannelKey{Key: k, Version: share.Version}, nil
}

func issue(version int, sender domain.X25519KeyPair, members []domain.Member) (domain.ChannelKey, []domain.ChannelKeyShare, error) {
	members = dedupe(members)
	if len(members) == 0 {
		return domain.ChannelKey{}, nil, domain.ErrNoMembers
	}
	k, err := crypto.GenerateSymmetricKey()
	if err != nil {
		return domain.ChannelKey{}, nil, err
	}
	key := domain.ChannelKey{Key: k, Version: version}

	shares := make([]domain.ChannelKeyShare, 0, len(members))
	for _, m := range members {
		s, err := SealShare(key, sender, m)
		if err != nil {
			return domain.ChannelKey{}, nil, fmt.Errorf("seal share for %s: %w", m.UserID, err)
		}
		shares = append(shares, s)
	}
	return key, shares, nil
}

// dedupe keeps the first entry per user id.
func dedupe(members []domain.Member) []domain.Member {
	seen := make(map[domain.UserID]struct{}, len(members))
	out := make([]domain.Member, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Without returns members minus user.
func Without(members []domain.Member, user domain.UserID) []domain.Member {
	out := make([]domain.Member, 0, len(members))
	for _, m := range members {
		if m.UserID != user {
			out = append(out, m)
		}
	}
	return out
}
