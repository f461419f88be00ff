package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// filePerm matches the 0600 contract documented by the teacher's vault
// storage test: secret-bearing blobs are owner-read-write only.
const filePerm = 0o600

// FileStore persists the PublicData blob to a single file, using a
// write-to-temp-then-rename so that UpdateSecret's new ciphertext and its
// incremented nonce land together or not at all, even across a crash
// mid-write — the atomicity spec.md §4.3 asks the store to provide.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by path. The file is not
// created until the first Store call.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the full blob from disk, translating a missing file into
// ErrNotFound.
func (s *FileStore) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("state: read %s: %w", s.path, err)
	}
	return data, nil
}

// Store atomically replaces the file's contents.
func (s *FileStore) Store(data []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("state: chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("state: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("state: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("state: rename into place: %w", err)
	}
	return nil
}
