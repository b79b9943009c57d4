package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"sealroom/internal/domain"
)

// Redis key layout, all under the store's prefix:
//
//	identity:{user}                   JSON PublicKeyBundle
//	prekey:{user}                     JSON SignedPrekey
//	members:{channel}                 SET of user ids
//	share:{channel}:{user}:{version}  JSON ChannelKeyShare
//	shares:{channel}:{user}           ZSET of versions, score = version
const defaultRedisPrefix = "sealroom:"

// RedisStore keeps the directory in Redis.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore wraps rdb. The caller owns connection options.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: defaultRedisPrefix}
}

func (s *RedisStore) identityKey(u domain.UserID) string   { return s.prefix + "identity:" + string(u) }
func (s *RedisStore) prekeyKey(u domain.UserID) string     { return s.prefix + "prekey:" + string(u) }
func (s *RedisStore) membersKey(c domain.ChannelID) string { return s.prefix + "members:" + string(c) }
func (s *RedisStore) versionsKey(c domain.ChannelID, u domain.UserID) string {
	return s.prefix + "shares:" + string(c) + ":" + string(u)
}
func (s *RedisStore) shareKey(c domain.ChannelID, u domain.UserID, v int) string {
	return fmt.Sprintf("%sshare:%s:%s:%d", s.prefix, c, u, v)
}

func (s *RedisStore) PutIdentity(ctx context.Context, user domain.UserID, bundle domain.PublicKeyBundle) error {
	return s.setJSON(ctx, s.identityKey(user), bundle)
}

func (s *RedisStore) PutPrekey(ctx context.Context, user domain.UserID, prekey domain.SignedPrekey) error {
	n, err := s.rdb.Exists(ctx, s.identityKey(user)).Result()
	if err != nil {
		return fmt.Errorf("redis exists: %w", err)
	}
	if n == 0 {
		return errNoIdentity(user)
	}
	return s.setJSON(ctx, s.prekeyKey(user), prekey)
}

func (s *RedisStore) PrekeyBundle(ctx context.Context, user domain.UserID) (domain.PrekeyBundle, error) {
	vals, err := s.rdb.MGet(ctx, s.identityKey(user), s.prekeyKey(user)).Result()
	if err != nil {
		return domain.PrekeyBundle{}, fmt.Errorf("redis mget: %w", err)
	}
	idRaw, ok1 := vals[0].(string)
	pkRaw, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return domain.PrekeyBundle{}, errNoBundle(user)
	}
	var (
		id domain.PublicKeyBundle
		pk domain.SignedPrekey
	)
	if err := json.Unmarshal([]byte(idRaw), &id); err != nil {
		return domain.PrekeyBundle{}, fmt.Errorf("decode identity: %w", err)
	}
	if err := json.Unmarshal([]byte(pkRaw), &pk); err != nil {
		return domain.PrekeyBundle{}, fmt.Errorf("decode prekey: %w", err)
	}
	return domain.PrekeyBundle{
		IdentityPublicKey: id.IdentityPublicKey,
		SigningPublicKey:  id.SigningPublicKey,
		PrekeyPublic:      pk.PrekeyPublic,
		PrekeySignature:   pk.PrekeySignature,
	}, nil
}

func (s *RedisStore) PutMembers(ctx context.Context, channel domain.ChannelID, users []domain.UserID) error {
	key := s.membersKey(channel)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(users) > 0 {
			members := make([]any, 0, len(users))
			for _, u := range users {
				members = append(members, string(u))
			}
			p.SAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put members: %w", err)
	}
	return nil
}

func (s *RedisStore) Members(ctx context.Context, channel domain.ChannelID) ([]domain.Member, error) {
	ids, err := s.rdb.SMembers(ctx, s.membersKey(channel)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(ids)
	out := make([]domain.Member, 0, len(ids))
	for _, u := range ids {
		var id domain.PublicKeyBundle
		ok, err := s.getJSON(ctx, s.identityKey(domain.UserID(u)), &id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, domain.Member{UserID: domain.UserID(u), PublicKey: id.IdentityPublicKey})
	}
	return out, nil
}

func (s *RedisStore) PutShares(ctx context.Context, channel domain.ChannelID, shares []domain.ChannelKeyShare) error {
	if err := validShares(shares); err != nil {
		return err
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, sh := range shares {
			b, err := json.Marshal(sh)
			if err != nil {
				return err
			}
			p.Set(ctx, s.shareKey(channel, sh.UserID, sh.Version), b, 0)
			p.ZAdd(ctx, s.versionsKey(channel, sh.UserID), redis.Z{Score: float64(sh.Version), Member: strconv.Itoa(sh.Version)})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put shares: %w", err)
	}
	return nil
}

func (s *RedisStore) Share(ctx context.Context, channel domain.ChannelID, user domain.UserID, version int) (domain.ChannelKeyShare, error) {
	if version == 0 {
		top, err := s.rdb.ZRevRange(ctx, s.versionsKey(channel, user), 0, 0).Result()
		if err != nil {
			return domain.ChannelKeyShare{}, fmt.Errorf("redis zrevrange: %w", err)
		}
		if len(top) == 0 {
			return domain.ChannelKeyShare{}, errNoShare(channel, user, 0)
		}
		if version, err = strconv.Atoi(top[0]); err != nil {
			return domain.ChannelKeyShare{}, fmt.Errorf("bad version member %q: %w", top[0], err)
		}
	}
	var sh domain.ChannelKeyShare
	ok, err := s.getJSON(ctx, s.shareKey(channel, user, version), &sh)
	if err != nil {
		return domain.ChannelKeyShare{}, err
	}
	if !ok {
		return domain.ChannelKeyShare{}, errNoShare(channel, user, version)
	}
	return sh, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func (s *RedisStore) setJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

var _ Store = (*RedisStore)(nil)
