package repository

import (
	"context"
)

// Store is the key-value storage the engine persists to. Values are opaque
// JSON documents.
type Store interface {
	// Get returns the value under key, or an error wrapping
	// apperrors.ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Change describes a write made through another Store instance sharing the
// same backing storage.
type Change struct {
	Key     string `json:"key"`
	Value   []byte `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Origin  string `json:"origin"`
}

// Watcher is implemented by stores that can report writes made by other
// instances. Writes made through the watching instance itself are never
// delivered.
type Watcher interface {
	// Watch calls fn for every foreign change until ctx is done. It blocks;
	// fn is called from the watching goroutine, one change at a time.
	Watch(ctx context.Context, fn func(Change)) error
}

// Pinger is implemented by stores backed by a network service.
type Pinger interface {
	Ping(ctx context.Context) error
}
