package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/voice-studio/internal/core"
	"github.com/book-expert/voice-studio/internal/fileutil"
)

const filePermissions = 0o600

// ErrInvalidKey is returned for keys that would escape the store directory.
var ErrInvalidKey = errors.New("invalid object key")

// FileStore keeps objects as files in a local directory, one file per key.
type FileStore struct {
	dir string
}

var _ core.ObjectStore = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	err := fileutil.EnsureDir(dir)
	if err != nil {
		return nil, err
	}

	return &FileStore{dir: dir}, nil
}

// Path returns the file an object is stored in.
func (f *FileStore) Path(key string) (string, error) {
	name := fileutil.ClipName(key)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return filepath.Join(f.dir, name), nil
}

func (f *FileStore) Download(_ context.Context, key string) ([]byte, error) {
	path, err := f.Path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, err)
	}

	return data, nil
}

func (f *FileStore) Upload(_ context.Context, key string, data []byte) error {
	path, err := f.Path(key)
	if err != nil {
		return err
	}

	err = os.WriteFile(path, data, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write object '%s': %w", key, err)
	}

	return nil
}
