package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"collab-auth/internal/auth"
	"collab-auth/internal/utils"
)

// FileStore keeps identities in a single JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

// LoadAll returns no identities when the file does not exist yet.
func (f *FileStore) LoadAll(_ context.Context) ([]auth.Identity, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", f.path, err)
	}

	var identities []auth.Identity
	if err := json.Unmarshal(data, &identities); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", f.path, err)
	}
	return identities, nil
}

// SaveAll replaces the file atomically.
func (f *FileStore) SaveAll(_ context.Context, identities []auth.Identity) error {
	if identities == nil {
		identities = []auth.Identity{}
	}
	data, err := json.MarshalIndent(identities, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	if err := utils.WriteFileAtomic(f.path, data, 0o600); err != nil {
		return fmt.Errorf("store: save %s: %w", f.path, err)
	}
	return nil
}
