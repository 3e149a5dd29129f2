package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rxdi/cache/logger"
	"github.com/rxdi/cache/store"
)

// CreateOptions describes a layer for Registry.Create.
type CreateOptions struct {
	Name string
	// Items pre-populate the layer. Their expiry timers start at creation.
	Items []Item
	// Config defaults to the registry's layer config when nil.
	Config *LayerConfig
	// CreatedAt defaults to now. An older value shortens the layer's lifetime.
	CreatedAt time.Time
}

// Registry owns a set of uniquely named layers. Each layer lives until it is
// removed explicitly, flushed away with FlushCache, or outlives its flush
// interval. With a usable store and a persisting config, layers are mirrored
// and rebuilt by the next Registry constructed on the same store.
//
// Lock order is registry then layer; layers never call back into the registry.
type Registry struct {
	cfg    config
	logger logger.Logger
	mirror *mirror

	mu       sync.Mutex
	layers   map[string]*Layer
	names    []string
	timers   *scheduler
	notifier *notifier[[]*Layer]
}

// NewRegistry builds a registry from opts. If a store is configured it is
// probed first; a failing probe is logged once and the registry falls back
// to memory-only operation. When the layer config persists, layers listed
// in the store's index are rebuilt, and stale ones are evicted immediately.
func NewRegistry(ctx context.Context, opts ...Option) *Registry {
	cfg := applyOptions(opts)
	r := &Registry{
		cfg:      cfg,
		logger:   cfg.logger.WithPrefix("[cache]"),
		layers:   make(map[string]*Layer),
		timers:   newScheduler(cfg.clock),
		notifier: newNotifier([]*Layer{}),
	}

	if cfg.store != nil {
		if err := store.Probe(ctx, cfg.store); err != nil {
			r.logger.Warn("%v: %v", ErrPersistenceUnavailable, err)
		} else {
			r.mirror = &mirror{
				ctx:     context.WithoutCancel(ctx),
				store:   cfg.store,
				codec:   cfg.codec,
				timeout: cfg.queryTimeout,
			}
		}
	}

	if r.mirror != nil && cfg.layer.Persist {
		r.rehydrate()
	}
	return r
}

func (r *Registry) rehydrate() {
	names, found, err := r.mirror.readIndex()
	if err != nil {
		r.logger.Error("failed to read layer index: %v", err)
		return
	}
	if !found {
		if err := r.mirror.writeIndex(nil); err != nil {
			r.logger.Error("failed to initialise layer index: %v", err)
		}
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		rec, found, err := r.mirror.loadLayer(name)
		if err != nil {
			r.logger.Error("failed to load layer %q: %v", name, err)
			continue
		}
		if !found {
			continue
		}
		r.createLocked(rec.createOptions())
		r.logger.Debug("rehydrated layer %q with %d items", name, len(rec.Items))
	}
}

// Persistent reports whether the store passed its probe.
func (r *Registry) Persistent() bool {
	return r.mirror != nil
}

// Get returns the named layer, creating it with the default config if needed.
func (r *Registry) Get(name string) *Layer {
	return r.Create(CreateOptions{Name: name})
}

// Create returns the layer named opts.Name. If it already exists it is
// returned untouched and the rest of opts is ignored.
func (r *Registry) Create(opts CreateOptions) *Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(opts)
}

func (r *Registry) createLocked(opts CreateOptions) *Layer {
	if l, ok := r.layers[opts.Name]; ok {
		return l
	}

	cfg := r.cfg.layer
	if opts.Config != nil {
		cfg = *opts.Config
	}
	createdAt := opts.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.cfg.clock.Now()
	}

	var m *mirror
	if cfg.Persist {
		m = r.mirror
	}
	timers := newScheduler(r.cfg.clock)
	if r.timers.stopped {
		timers.stop()
	}
	l := newLayer(opts.Name, cfg, createdAt, timers, m, r.logger)
	l.restore(opts.Items)

	if m != nil {
		l.persistNow()
		if err := m.indexLayer(l.name); err != nil {
			r.logger.Error("failed to index layer %q: %v", l.name, err)
		}
	}

	r.layers[l.name] = l
	r.names = append(r.names, l.name)
	r.publishLocked()

	if cfg.Expires() {
		age := r.cfg.clock.Since(createdAt)
		if age > cfg.FlushInterval {
			r.logger.Debug("layer %q is %s old, evicting", l.name, age)
			r.removeLocked(l)
			return l
		}
		r.timers.schedule(l.name, cfg.FlushInterval-age, r.expireLayer)
	}
	return l
}

// Remove tears down l: its persisted blob and index entry are deleted, its
// items are removed with notifications, and it leaves the registry.
// A handle kept by a caller still works afterwards but is memory-only.
func (r *Registry) Remove(l *Layer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(l)
}

func (r *Registry) removeLocked(l *Layer) {
	if r.layers[l.name] != l {
		// Already removed; the name may belong to a newer layer by now.
		l.teardown()
		return
	}
	r.timers.cancel(l.name)
	if r.mirror != nil && l.config.Persist {
		if err := r.mirror.deleteLayer(l.name); err != nil {
			r.logger.Error("failed to delete persisted layer %q: %v", l.name, err)
		}
		if err := r.mirror.unindexLayer(l.name); err != nil {
			r.logger.Error("failed to unindex layer %q: %v", l.name, err)
		}
	}
	l.teardown()
	delete(r.layers, l.name)
	r.names = slices.DeleteFunc(r.names, func(n string) bool { return n == l.name })
	r.publishLocked()
}

// expireLayer runs on the timer goroutine.
func (r *Registry) expireLayer(name string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.timers.claim(name, gen) {
		return
	}
	if l, ok := r.layers[name]; ok {
		r.logger.Debug("layer %q expired", name)
		r.removeLocked(l)
	}
}

// TransferItems copies every item of the source layer into each destination,
// creating destinations as needed. Items go through Put, so destination
// expiry and persistence apply. The source layer is left intact.
func (r *Registry) TransferItems(source string, destinations []CreateOptions) []*Layer {
	items := r.Get(source).Snapshot()
	out := make([]*Layer, 0, len(destinations))
	for _, opts := range destinations {
		l := r.Create(opts)
		for _, item := range items {
			l.Put(item)
		}
		out = append(out, l)
	}
	return out
}

// FlushCache removes every layer. Without force each removed name is
// recreated empty with the default config; with force the persisted index
// is deleted as well so nothing is rebuilt on the next start.
func (r *Registry) FlushCache(force bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := slices.Clone(r.names)
	for _, name := range names {
		if l, ok := r.layers[name]; ok {
			r.removeLocked(l)
		}
	}
	if force {
		if r.mirror != nil {
			if err := r.mirror.dropIndex(); err != nil {
				r.logger.Error("failed to drop layer index: %v", err)
			}
		}
		return
	}
	for _, name := range names {
		r.createLocked(CreateOptions{Name: name})
	}
}

// Has reports whether a layer named name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.layers[name]
	return ok
}

// Layers returns the registered layers in creation order.
func (r *Registry) Layers() []*Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.layerListLocked()
}

// Subscribe streams the registered layer list: the current one immediately,
// then one per create or remove. Closing the Subscription only affects
// this consumer.
func (r *Registry) Subscribe() *Subscription[[]*Layer] {
	return subscribe(r.notifier, identity[[]*Layer])
}

// Close disarms every layer and item timer. Layers and persisted state are
// kept; nothing expires after Close.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers.stop()
	for _, l := range r.layers {
		l.stop()
	}
	return nil
}

func (r *Registry) layerListLocked() []*Layer {
	out := make([]*Layer, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.layers[name])
	}
	return out
}

func (r *Registry) publishLocked() {
	r.notifier.publish(r.layerListLocked())
}
