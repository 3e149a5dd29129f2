package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rxdi/cache/cache"
	"github.com/rxdi/cache/logger"
	"github.com/rxdi/cache/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, cache.DefaultLayerConfig(), cfg.LayerConfig())
	assert.Equal(t, store.DriverMemory, cfg.StoreConfig().Driver)
	assert.Equal(t, cache.DefaultQueryTimeout, cfg.StoreConfig().QueryTimeout)
	assert.Equal(t, logger.LevelInfo, cfg.Level())
}

func TestLoadFile(t *testing.T) {
	p := writeFile(t, "cache.yaml", `
cache:
  flushInterval: 1d2h
  persist: true
store:
  driver: sqlite
  path: ./cache.db
  prefix: cachectl
  queryTimeout: 2s
logLevel: debug
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, cache.LayerConfig{FlushInterval: 26 * time.Hour, Persist: true}, cfg.LayerConfig())
	assert.Equal(t, store.Config{
		Driver:       store.DriverSQLite,
		Path:         "./cache.db",
		Prefix:       "cachectl",
		QueryTimeout: 2 * time.Second,
	}, cfg.StoreConfig())
	assert.Equal(t, logger.LevelDebug, cfg.Level())
}

func TestLoadDisabledInterval(t *testing.T) {
	for _, v := range []string{"none", "0", "off"} {
		p := writeFile(t, "cache.yaml", "cache:\n  flushInterval: "+v+"\n")
		cfg, err := Load(p)
		require.NoError(t, err, v)
		assert.False(t, cfg.LayerConfig().Expires(), v)
	}
}

func TestLoadInvalid(t *testing.T) {
	p := writeFile(t, "cache.yaml", "cache:\n  flushInterval: soon\n")
	_, err := Load(p)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	p = writeFile(t, "cache.yaml", "store:\n  driver: etcd\n")
	_, err = Load(p)
	assert.True(t, errors.Is(err, store.ErrUnknownDriver))

	p = writeFile(t, "cache.yaml", "store:\n  driver: sqlite\n")
	_, err = Load(p)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	p = writeFile(t, "cache.yaml", "logFormat: xml\n")
	_, err = Load(p)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	p = writeFile(t, "cache.yaml", "store:\n  driver: redis\n")
	_, err = Load(p)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestEnvOverrides(t *testing.T) {
	p := writeFile(t, "cache.yaml", "cache:\n  flushInterval: 1h\n")
	t.Setenv(EnvFlushInterval, "90s")
	t.Setenv(EnvPersist, "true")
	t.Setenv(EnvStoreDriver, "REDIS")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/1")
	t.Setenv(logger.EnvLogLevel, "warn")
	t.Setenv(EnvLogFormat, "JSON")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.LayerConfig().FlushInterval)
	assert.True(t, cfg.LayerConfig().Persist)
	assert.Equal(t, store.DriverRedis, cfg.StoreConfig().Driver)
	assert.Equal(t, "redis://localhost:6379/1", cfg.StoreConfig().RedisURL)
	assert.Equal(t, logger.LevelWarn, cfg.Level())
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)

	t.Setenv(EnvPersist, "maybe")
	_, err = Load(p)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoadWithEnvFile(t *testing.T) {
	envFile := writeFile(t, ".env", `
# comment
export CACHE_STORE_DRIVER=sqlite
CACHE_STORE_PATH="${DATA_DIR:-/var/lib/cachectl}/cache.db"
CACHE_FLUSH_INTERVAL='30m'
CACHE_PERSIST=false
`)
	t.Setenv(EnvPersist, "true")

	cfg, err := LoadWithEnvFile("", envFile)
	require.NoError(t, err)
	assert.Equal(t, store.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/var/lib/cachectl/cache.db", cfg.Store.Path)
	assert.Equal(t, 30*time.Minute, cfg.LayerConfig().FlushInterval)
	assert.True(t, cfg.Cache.Persist, "process environment wins over the file")
}

func TestParseEnvBuffer(t *testing.T) {
	vars, err := ParseEnvBuffer([]byte("A=1\nB=${A}-x\nC='${A}'\nD=${MISSING}\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "1-x", "C": "${A}", "D": "${MISSING}"}, vars)

	_, err = ParseEnvBuffer([]byte("novalue\n"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestDurationRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(Default())
	require.NoError(t, err)
	var cfg Config
	require.NoError(t, yaml.Unmarshal(out, &cfg))
	assert.Equal(t, Default(), cfg)

	out, err = yaml.Marshal(Cache{})
	require.NoError(t, err)
	assert.Contains(t, string(out), "none")
}
