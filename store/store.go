package store

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	// ErrUnknownDriver is returned by Open for an unsupported Config.Driver.
	ErrUnknownDriver = errors.New("store: unknown driver")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")
)

// Store is a flat key/value blob store. The cache mirrors layers into it
// and rebuilds them from it on startup.
//
// Contract:
//   - Get never returns an error for a missing key; it returns found=false.
//   - Remove is idempotent.
//   - Keys returns every key currently stored, in no particular order.
//   - Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Probe checks that s can be written to by storing and removing a
// throwaway key. A non-nil error means the store should not be used.
func Probe(ctx context.Context, s Store) error {
	if s == nil {
		return errors.New("store: nil store")
	}
	key := "cache-probe-" + uuid.NewString()
	if err := s.Set(ctx, key, []byte(`{"key":"test-object"}`)); err != nil {
		return errors.Wrap(err, "store: probe write")
	}
	if err := s.Remove(ctx, key); err != nil {
		return errors.Wrap(err, "store: probe remove")
	}
	return nil
}
