package blobstore

import (
	"os"
	"path/filepath"
)

// Store is a thin adapter over one backing directory. Files inside it can be
// deleted or lost out-of-band; callers must treat Exists as advisory.
type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Path returns the absolute-ish path for a stored filename.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Exists reports whether the named blob is on disk. A missing file is
// (false, nil); any other stat fault is returned as an error.
func (s *Store) Exists(name string) (bool, error) {
	_, err := os.Stat(s.Path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Store) Read(name string) ([]byte, error) {
	return os.ReadFile(s.Path(name))
}

func (s *Store) Write(name string, data []byte) error {
	return os.WriteFile(s.Path(name), data, 0644)
}

// Remove deletes a blob. Removing a file that is already gone is a no-op.
func (s *Store) Remove(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
