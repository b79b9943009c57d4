package identity

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"sealroom/internal/domain"
	"sealroom/internal/identity"
	"sealroom/internal/keystore"
)

// Service manages the local identity using a SecretStore and a Directory.
//
// The identity contains:
//   - X25519 key pair for sealing channel shares and the DM handshake.
//   - Ed25519 key pair for signing the prekey.
type Service struct {
	store domain.SecretStore
	dir   domain.Directory
	log   *slog.Logger
}

// New returns an identity service.
func New(store domain.SecretStore, dir domain.Directory, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{store: store, dir: dir, log: log}
}

// Create generates a 24-word recovery phrase, derives the identity from it
// and stores both. The phrase is returned so the user can write it down.
func (s *Service) Create(ctx context.Context) (string, domain.Fingerprint, error) {
	mnemonic, err := identity.NewMnemonic()
	if err != nil {
		return "", "", err
	}
	fp, err := s.Restore(ctx, mnemonic)
	if err != nil {
		return "", "", err
	}
	return mnemonic, fp, nil
}

// Restore derives the identity from an existing recovery phrase and stores it.
func (s *Service) Restore(_ context.Context, mnemonic string) (domain.Fingerprint, error) {
	id, err := identity.FromMnemonic(mnemonic)
	if err != nil {
		return "", err
	}
	if err := s.store.Put(keystore.MnemonicID, []byte(identity.NormalizeMnemonic(mnemonic))); err != nil {
		return "", fmt.Errorf("store mnemonic: %w", err)
	}
	return s.save(id, "mnemonic")
}

// FromSignature derives the identity from a 65-byte wallet signature. No
// recovery phrase is stored on this path.
func (s *Service) FromSignature(_ context.Context, signature []byte) (domain.Fingerprint, error) {
	id, err := identity.FromSignature(signature)
	if err != nil {
		return "", err
	}
	if err := s.store.Delete(keystore.MnemonicID); err != nil {
		return "", err
	}
	return s.save(id, "signature")
}

func (s *Service) save(id domain.Identity, source string) (domain.Fingerprint, error) {
	if err := keystore.PutJSON(s.store, keystore.IdentityKeysID, id); err != nil {
		return "", fmt.Errorf("store identity: %w", err)
	}
	fp := identity.Fingerprint(id)
	s.log.Info("identity stored", "source", source, "fingerprint", fp.String())
	return fp, nil
}

// Load returns the stored identity. KeyNotFound means none was set up yet.
func (s *Service) Load() (domain.Identity, error) {
	return keystore.GetJSON[domain.Identity](s.store, keystore.IdentityKeysID)
}

// ExportMnemonic returns the stored recovery phrase. Identities derived from a
// signature have none, which is KeyNotFound.
func (s *Service) ExportMnemonic() (string, error) {
	raw, err := s.store.Get(keystore.MnemonicID)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Fingerprint returns a short fingerprint of the local X25519 public key.
func (s *Service) Fingerprint() (domain.Fingerprint, error) {
	id, err := s.Load()
	if err != nil {
		return "", err
	}
	return identity.Fingerprint(id), nil
}

// Publish registers the public key bundle under user.
func (s *Service) Publish(ctx context.Context, user domain.UserID) error {
	id, err := s.Load()
	if err != nil {
		return err
	}
	if err := s.dir.PublishIdentity(ctx, user, id.Public()); err != nil {
		return fmt.Errorf("publish identity: %w", err)
	}
	s.log.Info("identity published", "user_id", user.String())
	return nil
}

// Reset wipes every locally held secret (sign-out / key reset).
func (s *Service) Reset() error {
	if err := s.store.ClearAll(); err != nil {
		return err
	}
	s.log.Warn("local keys reset")
	return nil
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
