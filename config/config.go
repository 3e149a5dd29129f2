// Package config loads cachectl settings from a YAML file, an optional
// dotenv file and CACHE_* environment variables, in that order of precedence
// from lowest to highest.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rxdi/cache/cache"
	"github.com/rxdi/cache/logger"
	"github.com/rxdi/cache/store"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

const (
	EnvFlushInterval = "CACHE_FLUSH_INTERVAL"
	EnvPersist       = "CACHE_PERSIST"
	EnvStoreDriver   = "CACHE_STORE_DRIVER"
	EnvStorePath     = "CACHE_STORE_PATH"
	EnvRedisURL      = "CACHE_REDIS_URL"
	EnvStorePrefix   = "CACHE_STORE_PREFIX"
	EnvQueryTimeout  = "CACHE_QUERY_TIMEOUT"
	EnvLogFormat     = "CACHE_LOG_FORMAT"
)

const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

var ErrInvalidConfig = errors.New("config: invalid value")

// Duration accepts str2duration syntax ("90s", "1d12h"). The strings "none",
// "off" and "0" mean zero, which disables expiry.
type Duration time.Duration

func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "0", "none", "off", "null":
		return 0, nil
	}
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "config: parse duration %q", s), ErrInvalidConfig)
	}
	if d < 0 {
		return 0, errors.Wrapf(ErrInvalidConfig, "negative duration %q", s)
	}
	return Duration(d), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	if d == 0 {
		return "none", nil
	}
	return str2duration.String(time.Duration(d)), nil
}

type Cache struct {
	FlushInterval Duration `yaml:"flushInterval"`
	Persist       bool     `yaml:"persist"`
}

type Store struct {
	Driver       store.Driver `yaml:"driver"`
	Path         string       `yaml:"path"`
	RedisURL     string       `yaml:"redisURL"`
	Prefix       string       `yaml:"prefix"`
	QueryTimeout Duration     `yaml:"queryTimeout"`
}

// Config is the file layout understood by Load.
type Config struct {
	Cache    Cache  `yaml:"cache"`
	Store    Store  `yaml:"store"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// Default matches cache.DefaultLayerConfig with an in-memory store.
func Default() Config {
	return Config{
		Cache: Cache{FlushInterval: Duration(cache.DefaultFlushInterval)},
		Store: Store{
			Driver:       store.DriverMemory,
			QueryTimeout: Duration(cache.DefaultQueryTimeout),
		},
		LogLevel:  logger.LevelInfo.String(),
		LogFormat: LogFormatConsole,
	}
}

// Load reads path over the defaults. A missing file is not an error.
// Environment overrides are applied last.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		buf, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, errors.Wrapf(err, "config: read %s", path)
		default:
			if err := yaml.Unmarshal(buf, &cfg); err != nil {
				return cfg, errors.Wrapf(err, "config: parse %s", path)
			}
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvFlushInterval); ok {
		d, err := ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvFlushInterval)
		}
		c.Cache.FlushInterval = d
	}
	if v, ok := lookup(EnvPersist); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(ErrInvalidConfig, "%s=%q", EnvPersist, v)
		}
		c.Cache.Persist = b
	}
	if v, ok := lookup(EnvStoreDriver); ok {
		c.Store.Driver = store.Driver(strings.ToLower(v))
	}
	if v, ok := lookup(EnvStorePath); ok {
		c.Store.Path = v
	}
	if v, ok := lookup(EnvRedisURL); ok {
		c.Store.RedisURL = v
	}
	if v, ok := lookup(EnvStorePrefix); ok {
		c.Store.Prefix = v
	}
	if v, ok := lookup(EnvQueryTimeout); ok {
		d, err := ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvQueryTimeout)
		}
		c.Store.QueryTimeout = d
	}
	if v, ok := lookup(logger.EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		c.LogFormat = strings.ToLower(v)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.LogFormat {
	case "", LogFormatConsole, LogFormatJSON:
	default:
		return errors.Wrapf(ErrInvalidConfig, "log format %q", c.LogFormat)
	}
	switch c.Store.Driver {
	case "", store.DriverMemory, store.DriverRedis:
	case store.DriverSQLite:
		if c.Store.Path == "" {
			return errors.Wrap(ErrInvalidConfig, "sqlite driver requires store.path")
		}
	default:
		return errors.Wrapf(store.ErrUnknownDriver, "%q", c.Store.Driver)
	}
	if c.Store.Driver == store.DriverRedis && c.Store.RedisURL == "" {
		return errors.Wrap(ErrInvalidConfig, "redis driver requires store.redisURL")
	}
	return nil
}

func (c Config) LayerConfig() cache.LayerConfig {
	return cache.LayerConfig{
		FlushInterval: time.Duration(c.Cache.FlushInterval),
		Persist:       c.Cache.Persist,
	}
}

func (c Config) StoreConfig() store.Config {
	return store.Config{
		Driver:       c.Store.Driver,
		Path:         c.Store.Path,
		RedisURL:     c.Store.RedisURL,
		Prefix:       c.Store.Prefix,
		QueryTimeout: time.Duration(c.Store.QueryTimeout),
	}
}

func (c Config) Level() logger.LogLevel {
	return logger.ParseLevel(c.LogLevel)
}

// Logger builds the logger selected by LogFormat at the configured level.
func (c Config) Logger() logger.Logger {
	if c.LogFormat == LogFormatJSON {
		return logger.NewJSONLogger(c.Level())
	}
	return logger.NewConsoleLogger(c.Level())
}
