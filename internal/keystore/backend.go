package keystore

import (
	"path/filepath"
	"sort"
	"sync"
)

// Record is one wrapped secret as persisted by a Backend.
type Record struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Backend persists wrapped records. It never sees plaintext.
type Backend interface {
	Load(id string) (Record, bool, error)
	Save(id string, rec Record) error
	Delete(id string) error
	List() ([]string, error)
	Clear() error
}

// MemoryBackend keeps records in process memory.
type MemoryBackend struct {
	mu   sync.Mutex
	recs map[string]Record
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{recs: make(map[string]Record)}
}

func (b *MemoryBackend) Load(id string) (Record, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.recs[id]
	return r, ok, nil
}

func (b *MemoryBackend) Save(id string, rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recs[id] = rec
	return nil
}

func (b *MemoryBackend) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.recs, id)
	return nil
}

func (b *MemoryBackend) List() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedKeys(b.recs), nil
}

func (b *MemoryBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recs = make(map[string]Record)
	return nil
}

const recordsFile = "keystore.json"

// FileBackend persists records as one JSON document under dir.
// Writes go through a temp file and rename.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

// NewFileBackend returns a FileBackend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

func (b *FileBackend) path() string { return filepath.Join(b.dir, recordsFile) }

func (b *FileBackend) read() (map[string]Record, error) {
	m := map[string]Record{}
	if err := readJSON(b.path(), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Load returns the record for id.
func (b *FileBackend) Load(id string) (Record, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.read()
	if err != nil {
		return Record{}, false, err
	}
	r, ok := m[id]
	return r, ok, nil
}

// Save writes rec under id, replacing any previous record.
func (b *FileBackend) Save(id string, rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.read()
	if err != nil {
		return err
	}
	m[id] = rec
	return writeJSON(b.path(), m, 0o600)
}

// Delete removes id.
func (b *FileBackend) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.read()
	if err != nil {
		return err
	}
	if _, ok := m[id]; !ok {
		return nil
	}
	delete(m, id)
	return writeJSON(b.path(), m, 0o600)
}

// List returns every stored id in sorted order.
func (b *FileBackend) List() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.read()
	if err != nil {
		return nil, err
	}
	return sortedKeys(m), nil
}

// Clear removes every record.
func (b *FileBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return writeJSON(b.path(), map[string]Record{}, 0o600)
}

func sortedKeys(m map[string]Record) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*FileBackend)(nil)
)
