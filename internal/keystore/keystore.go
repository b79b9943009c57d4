package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"sealroom/internal/domain"
	"sealroom/internal/util/memzero"
)

const (
	deviceKeyBytes = 32
	canaryText     = "sealroom-device-canary-v1"
)

// KeyStore implements domain.SecretStore over a Backend and a DeviceKeySource.
type KeyStore struct {
	backend Backend
	source  DeviceKeySource
	log     *slog.Logger

	mu   sync.Mutex
	aead cipher.AEAD
}

// New returns a KeyStore. Nothing is read until the first operation.
func New(backend Backend, source DeviceKeySource, log *slog.Logger) *KeyStore {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &KeyStore{backend: backend, source: source, log: log}
}

// Put wraps plaintext under the device key and persists it under id.
func (s *KeyStore) Put(id string, plaintext []byte) error {
	if id == "" || id == canaryID {
		return domain.NewError(domain.KindInvalidArgument, "invalid record id")
	}
	aead, err := s.cipher()
	if err != nil {
		return err
	}
	rec, err := seal(aead, id, plaintext)
	if err != nil {
		return err
	}
	if err := s.backend.Save(id, rec); err != nil {
		return domain.Wrap(domain.KindKeyStoreUnavailable, "save record", err)
	}
	return nil
}

// Get returns the plaintext stored under id.
func (s *KeyStore) Get(id string) ([]byte, error) {
	aead, err := s.cipher()
	if err != nil {
		return nil, err
	}
	rec, ok, err := s.backend.Load(id)
	if err != nil {
		return nil, domain.Wrap(domain.KindKeyStoreUnavailable, "load record", err)
	}
	if !ok {
		return nil, domain.NewError(domain.KindKeyNotFound, fmt.Sprintf("no record %q", id))
	}
	pt, err := open(aead, id, rec)
	if err != nil {
		return nil, domain.Wrap(domain.KindDecryptionFailed, fmt.Sprintf("record %q", id), err)
	}
	return pt, nil
}

// Delete removes id. Deleting an absent id is not an error.
func (s *KeyStore) Delete(id string) error {
	if id == canaryID {
		return domain.NewError(domain.KindInvalidArgument, "invalid record id")
	}
	if err := s.backend.Delete(id); err != nil {
		return domain.Wrap(domain.KindKeyStoreUnavailable, "delete record", err)
	}
	return nil
}

// ClearAll wipes every record. The device key itself is kept.
func (s *KeyStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Clear(); err != nil {
		return domain.Wrap(domain.KindKeyStoreUnavailable, "clear records", err)
	}
	s.aead = nil
	s.log.Info("key store cleared")
	return nil
}

// cipher returns the device-key AEAD, initializing it on first use. A failed
// initialization is not cached so a later call can retry.
func (s *KeyStore) cipher() (cipher.AEAD, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aead != nil {
		return s.aead, nil
	}

	key, err := s.source.Load()
	switch {
	case errors.Is(err, ErrNoDeviceKey):
		ids, lerr := s.backend.List()
		if lerr != nil {
			return nil, domain.Wrap(domain.KindKeyStoreUnavailable, "list records", lerr)
		}
		if len(ids) > 0 {
			return nil, domain.NewError(domain.KindKeyStoreUnavailable, "device key lost; stored secrets are unreadable")
		}
		key = make([]byte, deviceKeyBytes)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		if err := s.source.Store(key); err != nil {
			return nil, domain.Wrap(domain.KindKeyStoreUnavailable, "store device key", err)
		}
		s.log.Info("device key created")
	case err != nil:
		return nil, domain.Wrap(domain.KindKeyStoreUnavailable, "load device key", err)
	}
	defer memzero.Zero(key)

	aead, err := newAEAD(key)
	if err != nil {
		return nil, domain.Wrap(domain.KindKeyStoreUnavailable, "device key", err)
	}
	if err := s.checkCanary(aead); err != nil {
		return nil, err
	}
	s.aead = aead
	return aead, nil
}

// checkCanary verifies the device key against the canary record, writing the
// canary when the store is fresh.
func (s *KeyStore) checkCanary(aead cipher.AEAD) error {
	rec, ok, err := s.backend.Load(canaryID)
	if err != nil {
		return domain.Wrap(domain.KindKeyStoreUnavailable, "load canary", err)
	}
	if ok {
		pt, err := open(aead, canaryID, rec)
		if err != nil || string(pt) != canaryText {
			return domain.NewError(domain.KindKeyStoreUnavailable, "device key does not match stored secrets")
		}
		return nil
	}
	rec, err = seal(aead, canaryID, []byte(canaryText))
	if err != nil {
		return err
	}
	if err := s.backend.Save(canaryID, rec); err != nil {
		return domain.Wrap(domain.KindKeyStoreUnavailable, "save canary", err)
	}
	return nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != deviceKeyBytes {
		return nil, fmt.Errorf("device key: want %d bytes, got %d", deviceKeyBytes, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seal(aead cipher.AEAD, id string, plaintext []byte) (Record, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Record{}, err
	}
	return Record{Nonce: nonce, Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(id))}, nil
}

func open(aead cipher.AEAD, id string, rec Record) ([]byte, error) {
	if len(rec.Nonce) != aead.NonceSize() {
		return nil, errors.New("bad nonce size")
	}
	return aead.Open(nil, rec.Nonce, rec.Ciphertext, []byte(id))
}

// PutJSON marshals v and stores it under id.
func PutJSON(s domain.SecretStore, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	return s.Put(id, raw)
}

// GetJSON loads id and unmarshals it into a T.
func GetJSON[T any](s domain.SecretStore, id string) (T, error) {
	var out T
	raw, err := s.Get(id)
	if err != nil {
		return out, err
	}
	defer memzero.Zero(raw)
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, domain.Wrap(domain.KindInternal, fmt.Sprintf("decode record %q", id), err)
	}
	return out, nil
}

// Compile-time assertion that KeyStore implements domain.SecretStore.
var _ domain.SecretStore = (*KeyStore)(nil)
