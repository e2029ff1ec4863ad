// Package repository provides the persistence port of the passport ledger
// and its key-value store adapters.
package repository

import (
	"context"
	"errors"
)

// Common errors for store operations.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrEmptyKey    = errors.New("key must not be empty")
)

// Store is a key-value store over string keys and string values.
// Keys are already scoped to one identity by the caller.
// Get returns ErrKeyNotFound when nothing is stored under key; any other error
// means the store is unavailable.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
