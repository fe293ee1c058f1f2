// Package local implements a create-new artifact store on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/notesaver/internal/storage"
)

// BlobStore writes artifacts into caller-supplied directories.
type BlobStore struct {
	dirMode  os.FileMode
	fileMode os.FileMode
}

// New creates a local filesystem store.
func New() *BlobStore {
	return &BlobStore{
		dirMode:  0o750,
		fileMode: 0o644,
	}
}

// Create writes r to dir/name and returns a file:// URI. An existing file is
// never replaced: the call fails with storage.ErrExists. A partially written
// file is removed so a later run can retry.
func (s *BlobStore) Create(ctx context.Context, dir, name string, r io.Reader) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("target directory is required")
	}
	if err := storage.ValidateName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return "", fmt.Errorf("create target directory %s: %w", dir, err)
	}

	fullPath := filepath.Join(dir, name)
	file, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.fileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create %s: %w", fullPath, storage.ErrExists)
		}
		return "", fmt.Errorf("create %s: %w", fullPath, err)
	}

	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("write %s: %w", fullPath, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("close %s: %w", fullPath, err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}
