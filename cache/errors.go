package cache

import "github.com/cockroachdb/errors"

var (
	// ErrPersistenceUnavailable is logged when the store fails its probe.
	// The registry then runs memory-only; it is never returned to callers.
	ErrPersistenceUnavailable = errors.New("cache: persistent store unavailable, using memory only")
	// ErrInvalidKey is returned when a Key cannot be resolved.
	ErrInvalidKey = errors.New("cache: key is invalid")
	// ErrDecode is returned when cached data cannot be converted to the requested type.
	ErrDecode = errors.New("cache: cannot decode cached value")
)
