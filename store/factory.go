package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// Driver names a Store backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverSQLite Driver = "sqlite"
	DriverRedis  Driver = "redis"
)

// Config selects and configures a Store backend.
type Config struct {
	Driver       Driver        `yaml:"driver"`
	Path         string        `yaml:"path"`
	RedisURL     string        `yaml:"redisURL"`
	Prefix       string        `yaml:"prefix"`
	QueryTimeout time.Duration `yaml:"-"`
}

// Open creates the Store described by cfg. An empty driver means memory.
// For redis the returned Store owns its client and closes it on Close.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var opts []Option
	if cfg.QueryTimeout > 0 {
		opts = append(opts, WithQueryTimeout(cfg.QueryTimeout))
	}
	if cfg.Prefix != "" {
		opts = append(opts, WithPrefix(cfg.Prefix))
	}
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(ctx, cfg.Path, opts...)
	case DriverRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("store: redis driver requires a redis URL")
		}
		ropts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "store: parse redis URL")
		}
		client := redis.NewClient(ropts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, errors.Wrap(err, "store: connect to redis")
		}
		s := NewRedis(client, opts...).(*redisStore)
		s.owned = true
		return s, nil
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", cfg.Driver)
	}
}
