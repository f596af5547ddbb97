// Package kvstore provides the string key-value storage that shopper carts are
// persisted in. Backends are safe for concurrent use.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports that no value is stored under the key.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrQuotaExceeded reports that the backend refused a write for lack of space.
	ErrQuotaExceeded = errors.New("kvstore: quota exceeded")
	// ErrUnavailable reports that the backend could not be reached.
	ErrUnavailable = errors.New("kvstore: backend unavailable")
)

// Storage reads and writes string values by key.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s when it implements Pinger and reports nil otherwise.
func Ping(ctx context.Context, s Storage) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
