package keystore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

// ErrNoDeviceKey is returned by a DeviceKeySource that holds no key yet.
var ErrNoDeviceKey = errors.New("no device key")

// DeviceKeySource holds the raw device key outside the record backend.
type DeviceKeySource interface {
	Load() ([]byte, error)
	Store(key []byte) error
}

const deviceKeyFile = "device.key"

// FileDeviceKey keeps the device key in a 0600 file under dir.
type FileDeviceKey struct {
	dir string
}

// NewFileDeviceKey returns a FileDeviceKey rooted at dir.
func NewFileDeviceKey(dir string) *FileDeviceKey { return &FileDeviceKey{dir: dir} }

// Load reads the key file, returning ErrNoDeviceKey when it does not exist.
func (f *FileDeviceKey) Load() ([]byte, error) {
	b, err := readFile(filepath.Join(f.dir, deviceKeyFile))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNoDeviceKey
	}
	return b, nil
}

// Store writes key to the key file with owner-only permissions.
func (f *FileDeviceKey) Store(key []byte) error {
	return writeFile(filepath.Join(f.dir, deviceKeyFile), key, 0o600)
}

// Remove deletes the key file. Every record wrapped under it becomes unreadable.
func (f *FileDeviceKey) Remove() error {
	err := os.Remove(filepath.Join(f.dir, deviceKeyFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// KeyringDeviceKey keeps the device key in the host key manager
// (Keychain, Secret Service, Windows Credential Manager).
type KeyringDeviceKey struct {
	service string
	account string
}

// NewKeyringDeviceKey returns a source addressing (service, account) in the OS keyring.
func NewKeyringDeviceKey(service, account string) *KeyringDeviceKey {
	return &KeyringDeviceKey{service: service, account: account}
}

// Load fetches the key from the OS keyring, returning ErrNoDeviceKey when no
// entry exists.
func (k *KeyringDeviceKey) Load() ([]byte, error) {
	s, err := keyring.Get(k.service, k.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoDeviceKey
	}
	if err != nil {
		return nil, fmt.Errorf("keyring get: %w", err)
	}
	return base64.StdEncoding.DecodeString(s)
}

// Store saves key, base64 encoded, under (service, account).
func (k *KeyringDeviceKey) Store(key []byte) error {
	if err := keyring.Set(k.service, k.account, base64.StdEncoding.EncodeToString(key)); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// Remove deletes the key from the OS keyring.
func (k *KeyringDeviceKey) Remove() error {
	err := keyring.Delete(k.service, k.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

var (
	_ DeviceKeySource = (*FileDeviceKey)(nil)
	_ DeviceKeySource = (*KeyringDeviceKey)(nil)
)
