// Package keylock hands out one mutex per key.
package keylock

import "sync"

// Map is a lazily populated set of mutexes. The zero value is ready to use.
type Map[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*sync.Mutex
}

// Do runs fn while holding the mutex for key.
func (m *Map[K]) Do(key K, fn func() error) error {
	l := m.get(key)
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (m *Map[K]) get(key K) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks == nil {
		m.locks = make(map[K]*sync.Mutex)
	}
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}
