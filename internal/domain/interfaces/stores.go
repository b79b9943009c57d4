package interfaces

// SecretStore persists secrets wrapped under the device key. Every logical
// secret has its own record id.
type SecretStore interface {
	Put(id string, plaintext []byte) error
	// Get returns an error of kind KeyNotFound when id is absent and
	// KeyStoreUnavailable when the device key cannot be recovered.
	Get(id string) ([]byte, error)
	Delete(id string) error
	ClearAll() error
}
