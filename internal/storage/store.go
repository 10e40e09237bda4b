package storage

import (
	"context"
	"time"
)

// ObjectStore is durable blob storage keyed by an opaque object key.
type ObjectStore interface {
	// Put stores data under key. Exactly one write per upload; failure is
	// fatal to the request that triggered it.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the stored bytes for key.
	Get(ctx context.Context, key string) ([]byte, error)
	// PresignedURL returns a time-limited view URL for key.
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
