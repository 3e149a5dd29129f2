package cache

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rxdi/cache/logger"
	"github.com/rxdi/cache/store"
)

// DefaultFlushInterval is the TTL used when no LayerConfig is supplied.
const DefaultFlushInterval = time.Hour

// DefaultQueryTimeout bounds each persistent store operation.
const DefaultQueryTimeout = 5 * time.Second

// IndexKey is the store key holding the ordered list of persisted layer names.
const IndexKey = "cache_layers"

// LayerConfig controls expiry and persistence of a layer.
type LayerConfig struct {
	// FlushInterval is both the per-item TTL and the whole-layer TTL.
	// Zero disables expiry entirely.
	FlushInterval time.Duration
	// Persist mirrors the layer into the registry's store.
	Persist bool
}

// DefaultLayerConfig returns a one hour flush interval without persistence.
func DefaultLayerConfig() LayerConfig {
	return LayerConfig{FlushInterval: DefaultFlushInterval}
}

// Expires reports whether items and layers using this config expire.
func (c LayerConfig) Expires() bool {
	return c.FlushInterval > 0
}

type config struct {
	layer        LayerConfig
	store        store.Store
	logger       logger.Logger
	clock        clockwork.Clock
	codec        Codec
	queryTimeout time.Duration
}

// Option configures a Registry.
type Option func(*config)

func applyOptions(opts []Option) config {
	cfg := config{
		layer:        DefaultLayerConfig(),
		clock:        clockwork.NewRealClock(),
		codec:        JSONCodec,
		queryTimeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.NewConsoleLogger()
	}
	return cfg
}

// WithLayerConfig sets the config used for layers created without one.
func WithLayerConfig(c LayerConfig) Option {
	return func(cfg *config) { cfg.layer = c }
}

// WithStore sets the persistent store layers are mirrored to. Without a
// store, or if the store fails its probe, the registry is memory-only.
func WithStore(s store.Store) Option {
	return func(cfg *config) { cfg.store = s }
}

func WithLogger(l logger.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithCodec sets how persisted layers are encoded. Defaults to JSONCodec.
func WithCodec(c Codec) Option {
	return func(cfg *config) { cfg.codec = c }
}

func WithQueryTimeout(d time.Duration) Option {
	return func(cfg *config) { cfg.queryTimeout = d }
}
