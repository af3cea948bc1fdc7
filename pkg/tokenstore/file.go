package tokenstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore keeps values in memory and rewrites the whole file on every
// change. The file is only readable by its owner.
type FileStore struct {
	mutex  sync.Mutex
	path   string
	values map[string]string
}

// NewFileStore opens the store at path, loading any values already saved.
// A missing file is treated as an empty store.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		values: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parsing token file %s: %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}

	return s, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous, existed := s.values[key]
	s.values[key] = value

	if err := s.save(); err != nil {
		if existed {
			s.values[key] = previous
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Remove(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous, existed := s.values[key]
	if !existed {
		return nil
	}
	delete(s.values, key)

	if err := s.save(); err != nil {
		s.values[key] = previous
		return err
	}
	return nil
}

// save writes to a temporary file in the same directory and renames it over
// the target so readers never see a partial file.
func (s *FileStore) save() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encoding tokens: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("securing temp token file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp token file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}
