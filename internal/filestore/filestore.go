// Package filestore persists uploaded receipt images.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store is the persistence contract for receipt images.
type Store interface {
	Save(data []byte, suggestedName string) (string, error)
	Read(path string) ([]byte, error)
}

// DiskStore stores receipt images on the local filesystem under a single
// directory, with collision-resistant generated names.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the storage directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("receipt directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create receipt directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save writes data under a generated name, keeping only the extension of
// the suggested name. Returns the stored path.
func (s *DiskStore) Save(data []byte, suggestedName string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image data is required")
	}

	ext := strings.ToLower(filepath.Ext(suggestedName))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		ext = ".jpg"
	}

	path := filepath.Join(s.dir, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write receipt image: %w", err)
	}
	return path, nil
}

// Read returns the bytes of a previously stored image. Paths outside the
// storage directory are refused.
func (s *DiskStore) Read(path string) ([]byte, error) {
	cleaned := filepath.Clean(path)
	if !strings.HasPrefix(cleaned, filepath.Clean(s.dir)+string(filepath.Separator)) {
		return nil, fmt.Errorf("path %q is outside the receipt directory", path)
	}
	data, err := os.ReadFile(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt image: %w", err)
	}
	return data, nil
}
