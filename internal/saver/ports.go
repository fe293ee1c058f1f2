package saver

import (
	"context"
	"io"
	"time"
)

// Fetcher downloads a URL, following redirects, and returns the body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Store creates a new artifact and returns its URI. An existing artifact with
// the same name must cause an error rather than be replaced.
type Store interface {
	Create(ctx context.Context, dir, name string, r io.Reader) (string, error)
}

// Publisher pushes batch summaries to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// IDGenerator produces batch IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
