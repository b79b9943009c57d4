package prekey

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"sealroom/internal/crypto"
	"sealroom/internal/domain"
	"sealroom/internal/keystore"
	"sealroom/internal/protocol/x3dh"
	"sealroom/internal/util/memzero"
)

// record is the stored form of the current signed prekey.
type record struct {
	Private   domain.X25519Private `json:"private"`
	Public    domain.X25519Public  `json:"public"`
	Signature []byte               `json:"signature"`
}

// Service manages the signed prekey and builds the public bundle.
type Service struct {
	ids   domain.IdentityService
	store domain.SecretStore
	dir   domain.Directory
	log   *slog.Logger
}

// New returns a prekey service. A nil log discards output.
func New(ids domain.IdentityService, store domain.SecretStore, dir domain.Directory, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{ids: ids, store: store, dir: dir, log: log}
}

// Rotate replaces the signed prekey and publishes it under user.
//
// The new secret is stored before publishing so a peer can never fetch a
// prekey whose secret we do not hold. Sessions already completed are
// unaffected; handshakes started against the old prekey can no longer be
// completed.
func (s *Service) Rotate(ctx context.Context, user domain.UserID) (domain.PrekeyBundle, error) {
	id, err := s.ids.Load()
	if err != nil {
		return domain.PrekeyBundle{}, err
	}

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.PrekeyBundle{}, err
	}
	defer memzero.Zero(priv[:])
	sig := x3dh.SignPrekey(id.Signing.Private, pub)

	if err := keystore.PutJSON(s.store, keystore.PrekeySecretID, record{Private: priv, Public: pub, Signature: sig}); err != nil {
		return domain.PrekeyBundle{}, fmt.Errorf("store prekey: %w", err)
	}
	if err := s.dir.PublishPrekey(ctx, user, domain.SignedPrekey{PrekeyPublic: pub, PrekeySignature: sig}); err != nil {
		return domain.PrekeyBundle{}, fmt.Errorf("publish prekey: %w", err)
	}
	s.log.Info("prekey rotated", "user_id", user.String())

	return domain.PrekeyBundle{
		IdentityPublicKey: id.Encryption.Public,
		SigningPublicKey:  id.Signing.Public,
		PrekeyPublic:      pub,
		PrekeySignature:   sig,
	}, nil
}

// Secret returns the current prekey secret. KeyNotFound if none was generated.
func (s *Service) Secret() (domain.X25519Private, error) {
	rec, err := keystore.GetJSON[record](s.store, keystore.PrekeySecretID)
	if err != nil {
		return domain.X25519Private{}, err
	}
	return rec.Private, nil
}

// Bundle rebuilds the local bundle without touching the directory.
func (s *Service) Bundle() (domain.PrekeyBundle, error) {
	id, err := s.ids.Load()
	if err != nil {
		return domain.PrekeyBundle{}, err
	}
	rec, err := keystore.GetJSON[record](s.store, keystore.PrekeySecretID)
	if err != nil {
		return domain.PrekeyBundle{}, err
	}
	return domain.PrekeyBundle{
		IdentityPublicKey: id.Encryption.Public,
		SigningPublicKey:  id.Signing.Public,
		PrekeyPublic:      rec.Public,
		PrekeySignature:   rec.Signature,
	}, nil
}

// Compile-time assertion that Service implements domain.PrekeyService.
var _ domain.PrekeyService = (*Service)(nil)
