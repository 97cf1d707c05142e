package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Persister loads and saves the encoded identity document.
type Persister interface {
	// Load returns os.ErrNotExist (wrapped) when nothing has been saved yet.
	Load() ([]byte, error)
	Save(data []byte) error
}

// FileStore persists the document to a single file readable only by the user.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save writes to a temp file in the same directory and renames it into place.
func (f *FileStore) Save(data []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".identities-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write identities: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to write identities: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		cleanup()
		return fmt.Errorf("failed to write identities to %s: %w", f.Path, err)
	}
	return nil
}

// IsNotExist reports whether a Load error means nothing has been saved yet.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
