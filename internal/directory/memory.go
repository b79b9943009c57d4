package directory

import (
	"context"
	"sort"
	"sync"

	"sealroom/internal/domain"
)

type shareKey struct {
	channel domain.ChannelID
	user    domain.UserID
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[domain.UserID]domain.PublicKeyBundle
	prekeys    map[domain.UserID]domain.SignedPrekey
	members    map[domain.ChannelID][]domain.UserID
	shares     map[shareKey]map[int]domain.ChannelKeyShare
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: make(map[domain.UserID]domain.PublicKeyBundle),
		prekeys:    make(map[domain.UserID]domain.SignedPrekey),
		members:    make(map[domain.ChannelID][]domain.UserID),
		shares:     make(map[shareKey]map[int]domain.ChannelKeyShare),
	}
}

func (m *MemoryStore) PutIdentity(_ context.Context, user domain.UserID, bundle domain.PublicKeyBundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[user] = bundle
	return nil
}

func (m *MemoryStore) PutPrekey(_ context.Context, user domain.UserID, prekey domain.SignedPrekey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[user]; !ok {
		return errNoIdentity(user)
	}
	prekey.PrekeySignature = append([]byte(nil), prekey.PrekeySignature...)
	m.prekeys[user] = prekey
	return nil
}

func (m *MemoryStore) PrekeyBundle(_ context.Context, user domain.UserID) (domain.PrekeyBundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.identities[user]
	if !ok {
		return domain.PrekeyBundle{}, errNoBundle(user)
	}
	pk, ok := m.prekeys[user]
	if !ok {
		return domain.PrekeyBundle{}, errNoBundle(user)
	}
	return domain.PrekeyBundle{
		IdentityPublicKey: id.IdentityPublicKey,
		SigningPublicKey:  id.SigningPublicKey,
		PrekeyPublic:      pk.PrekeyPublic,
		PrekeySignature:   append([]byte(nil), pk.PrekeySignature...),
	}, nil
}

func (m *MemoryStore) PutMembers(_ context.Context, channel domain.ChannelID, users []domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[channel] = append([]domain.UserID(nil), users...)
	return nil
}

func (m *MemoryStore) Members(_ context.Context, channel domain.ChannelID) ([]domain.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[domain.UserID]struct{})
	out := make([]domain.Member, 0, len(m.members[channel]))
	for _, u := range m.members[channel] {
		id, ok := m.identities[u]
		if _, dup := seen[u]; !ok || dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, domain.Member{UserID: u, PublicKey: id.IdentityPublicKey})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *MemoryStore) PutShares(_ context.Context, channel domain.ChannelID, shares []domain.ChannelKeyShare) error {
	if err := validShares(shares); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range shares {
		k := shareKey{channel: channel, user: s.UserID}
		if m.shares[k] == nil {
			m.shares[k] = make(map[int]domain.ChannelKeyShare)
		}
		s.EncryptedKey = append([]byte(nil), s.EncryptedKey...)
		m.shares[k][s.Version] = s
	}
	return nil
}

func (m *MemoryStore) Share(_ context.Context, channel domain.ChannelID, user domain.UserID, version int) (domain.ChannelKeyShare, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byVersion := m.shares[shareKey{channel: channel, user: user}]
	if version == 0 {
		for v := range byVersion {
			if v > version {
				version = v
			}
		}
	}
	s, ok := byVersion[version]
	if !ok {
		return domain.ChannelKeyShare{}, errNoShare(channel, user, version)
	}
	s.EncryptedKey = append([]byte(nil), s.EncryptedKey...)
	return s, nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
