package store

import (
	"context"
	"errors"
)

// Well-known keys.
const (
	KeyToken  = "token"
	KeyOrigin = "origin"
)

// Errors
var (
	ErrEmptyKey = errors.New("empty key")
	ErrClosed   = errors.New("store closed")
)

// Store is a durable key-value store.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set creates or replaces the value for key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources.
	Close() error
}
