// Package memory stores artifacts in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"

	"github.com/JakeFAU/notesaver/internal/storage"
)

// BlobStore keeps artifacts keyed by dir/name with create-new semantics.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data: make(map[string][]byte),
	}
}

// Create stores the content of r unless dir/name already exists.
func (s *BlobStore) Create(_ context.Context, dir, name string, r io.Reader) (string, error) {
	if err := storage.ValidateName(name); err != nil {
		return "", err
	}
	byteData, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	key := path.Join(dir, name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return "", fmt.Errorf("create %s: %w", key, storage.ErrExists)
	}
	s.data[key] = byteData
	return fmt.Sprintf("memory://%s", key), nil
}

// Get returns a copy of the artifact stored at dir/name.
func (s *BlobStore) Get(dir, name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path.Join(dir, name)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Keys lists stored artifact keys in sorted order.
func (s *BlobStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
