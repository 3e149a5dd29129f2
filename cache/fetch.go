package cache

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Fetcher loads a remote resource by identifier.
type Fetcher interface {
	Fetch(ctx context.Context, identifier string) (any, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, identifier string) (any, error)

func (f FetcherFunc) Fetch(ctx context.Context, identifier string) (any, error) {
	return f(ctx, identifier)
}

// FetchConfig configures FetchWith.
type FetchConfig struct {
	// Identifier is passed to the Fetcher and names the cache key.
	Identifier string
	// Params, when set, are hashed into the key so each distinct set of
	// parameters is cached separately. The Fetcher still gets Identifier.
	Params any
	// NoCache skips the cache lookup. The fetched value is still stored.
	NoCache bool
}

func (c FetchConfig) key() Key {
	if c.Params != nil {
		return ParamsKey(c.Identifier, c.Params)
	}
	return FlatKey(c.Identifier)
}

// Fetch returns the value cached under identifier in l. On a miss, or when
// useCache is false, it calls f, stores the result under identifier and
// returns it. Fetch errors are returned to the caller and nothing is stored.
func Fetch[T any](ctx context.Context, l *Layer, f Fetcher, identifier string, useCache bool) (T, error) {
	return FetchWith[T](ctx, l, f, FetchConfig{Identifier: identifier, NoCache: !useCache})
}

// FetchWith is Fetch with structured keys. Concurrent misses for the same
// key share a single call to f, which is not cancelled with any one caller's
// ctx. A cancelled caller returns ctx.Err() while the others keep waiting.
func FetchWith[T any](ctx context.Context, l *Layer, f Fetcher, cfg FetchConfig) (T, error) {
	var zero T
	ctx, span := tracer.Start(ctx, "cache.Fetch", trace.WithAttributes(
		attribute.String("cache.layer", l.Name()),
		attribute.String("cache.identifier", cfg.Identifier),
	))
	defer span.End()

	key, err := cfg.key().Resolve()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return zero, err
	}

	if !cfg.NoCache {
		if item, ok := l.Get(key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			v, err := Decode[T](item.Data)
			if err == nil {
				span.SetStatus(codes.Ok, "cache hit")
				return v, nil
			}
			l.logger.Debug("cached value for %q no longer decodes, refetching: %v", key, err)
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// The shared call outlives any single caller; each waiter still
	// honours its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := l.flight.DoChan(key, func() (any, error) {
		data, err := f.Fetch(shared, cfg.Identifier)
		if err != nil {
			return nil, err
		}
		l.Put(Item{Key: key, Data: data})
		return data, nil
	})
	var data any
	select {
	case res := <-ch:
		data, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		err = errors.Wrapf(err, "cache: fetch %q", cfg.Identifier)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return zero, err
	}

	v, err := Decode[T](data)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return zero, err
	}
	span.SetStatus(codes.Ok, "fetched")
	return v, nil
}
