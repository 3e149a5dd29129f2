package store

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	cfg    config
	owned  bool
}

var _ Store = (*redisStore)(nil)

// NewRedis returns a Store backed by Redis string keys.
// The caller owns the redis.Client lifecycle; Close is a no-op on the client.
func NewRedis(client *redis.Client, opts ...Option) Store {
	return &redisStore{client: client, cfg: applyOptions(opts)}
}

func (s *redisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.queryTimeout)
}

func (s *redisStore) prefixKey(key string) string {
	if s.cfg.prefix == "" {
		return key
	}
	return s.cfg.prefix + ":" + key
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	data, err := s.client.Get(qctx, s.prefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "store: get %q", key)
	}
	return data, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, val []byte) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return errors.Wrapf(s.client.Set(qctx, s.prefixKey(key), val, 0).Err(), "store: set %q", key)
}

func (s *redisStore) Remove(ctx context.Context, key string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	return errors.Wrapf(s.client.Del(qctx, s.prefixKey(key)).Err(), "store: remove %q", key)
}

func (s *redisStore) Keys(ctx context.Context) ([]string, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	match := "*"
	if s.cfg.prefix != "" {
		match = s.cfg.prefix + ":*"
	}
	var keys []string
	iter := s.client.Scan(qctx, 0, match, 100).Iterator()
	for iter.Next(qctx) {
		k := iter.Val()
		if s.cfg.prefix != "" {
			k = strings.TrimPrefix(k, s.cfg.prefix+":")
		}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "store: scan keys")
	}
	return keys, nil
}

// Close is a no-op unless the client was created by Open.
func (s *redisStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
