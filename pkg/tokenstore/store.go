package tokenstore

import "sync"

// Well-known keys written by login and cleared by logout.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
	UserKey         = "user"
)

// Store is a process-wide key/value store for session data.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

type MemoryStore struct {
	mutex  sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.values[key] = value
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.values, key)
	return nil
}
