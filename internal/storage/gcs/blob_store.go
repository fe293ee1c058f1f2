// Package gcs provides a create-new artifact store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	notestorage "github.com/JakeFAU/notesaver/internal/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every object key.
	Prefix string
}

// BlobStore writes artifacts to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// ObjectKey maps a target directory and file name to an object key.
func ObjectKey(prefix, dir, name string) string {
	dir = strings.Trim(strings.ReplaceAll(dir, "\\", "/"), "/")
	return strings.TrimPrefix(path.Join(strings.Trim(prefix, "/"), dir, name), "/")
}

// Create uploads r under dir/name. The write carries a does-not-exist
// precondition so an existing object is never replaced.
func (s *BlobStore) Create(ctx context.Context, dir, name string, r io.Reader) (string, error) {
	if err := notestorage.ValidateName(name); err != nil {
		return "", err
	}
	key := ObjectKey(s.prefix, dir, name)
	obj := s.client.Bucket(s.bucket).Object(key).If(storage.Conditions{DoesNotExist: true})

	// Canceling the writer context before Close aborts the upload, so a
	// failed copy never leaves a partial object behind.
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	writer := obj.NewWriter(writeCtx)
	writer.ContentType = notestorage.ContentType(name)
	if _, err := io.Copy(writer, r); err != nil {
		cancel()
		_ = writer.Close()
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return "", fmt.Errorf("create gs://%s/%s: %w", s.bucket, key, notestorage.ErrExists)
		}
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
