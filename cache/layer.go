package cache

import (
	"sync"
	"time"

	"github.com/rxdi/cache/logger"
	"golang.org/x/sync/singleflight"
)

// Layer is a named cache namespace. Items are kept in put order and, when
// the layer's flush interval is set, each one expires that long after its
// last put. Every mutation publishes the full item list to subscribers and,
// for persisted layers, rewrites the layer's blob in the store.
//
// A Layer is safe for concurrent use. Item map, timers, notifications and
// store writes are all serialised by one mutex, so subscribers observe
// snapshots in mutation order.
type Layer struct {
	name      string
	config    LayerConfig
	createdAt time.Time
	logger    logger.Logger

	mu       sync.Mutex
	items    *itemStore
	timers   *scheduler
	notifier *notifier[[]Item]
	mirror   *mirror

	flight singleflight.Group
}

func newLayer(name string, cfg LayerConfig, createdAt time.Time, timers *scheduler, m *mirror, log logger.Logger) *Layer {
	return &Layer{
		name:      name,
		config:    cfg,
		createdAt: createdAt,
		logger:    logger.WithKV(log, "layer", name),
		items:     newItemStore(),
		timers:    timers,
		notifier:  newNotifier([]Item{}),
		mirror:    m,
	}
}

func (l *Layer) Name() string {
	return l.name
}

func (l *Layer) Config() LayerConfig {
	return l.config
}

func (l *Layer) CreatedAt() time.Time {
	return l.createdAt
}

// Get returns the item stored under key.
func (l *Layer) Get(key string) (Item, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.get(key)
}

// Put stores item, replacing any item with the same key and restarting its
// expiry timer.
func (l *Layer) Put(item Item) Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items.put(item)
	l.persistLocked()
	l.publishLocked()
	l.armLocked(item.Key)
	return item
}

// RemoveItem deletes key and disarms its timer. Removing an absent key is a no-op.
func (l *Layer) RemoveItem(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked(key)
}

// Flush removes every item one by one, so each removal is persisted and
// published like an explicit RemoveItem. The layer itself stays usable.
func (l *Layer) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushLocked()
}

// Snapshot returns the current items, most recently put last.
func (l *Layer) Snapshot() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.snapshot()
}

func (l *Layer) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.keys()
}

func (l *Layer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.len()
}

// Subscribe streams the full item list: the current one immediately, then
// one per mutation. Call Close on the returned Subscription when done.
func (l *Layer) Subscribe() *Subscription[[]Item] {
	return subscribe(l.notifier, identity[[]Item])
}

// SubscribeKey streams the item stored under key each time the layer
// changes while key is present. Nothing is delivered while key is absent.
func (l *Layer) SubscribeKey(key string) *Subscription[Item] {
	return subscribe(l.notifier, func(items []Item) (Item, bool) {
		for _, item := range items {
			if item.Key == key {
				return item, true
			}
		}
		return Item{}, false
	})
}

func (l *Layer) removeLocked(key string) {
	l.timers.cancel(key)
	if !l.items.remove(key) {
		return
	}
	l.persistLocked()
	l.publishLocked()
}

func (l *Layer) flushLocked() {
	for _, key := range l.items.keys() {
		l.removeLocked(key)
	}
}

func (l *Layer) armLocked(key string) {
	if !l.config.Expires() {
		return
	}
	l.timers.schedule(key, l.config.FlushInterval, l.expire)
}

// expire runs on the timer goroutine.
func (l *Layer) expire(key string, gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.timers.claim(key, gen) {
		return
	}
	l.logger.Debug("item %q expired after %s", key, l.config.FlushInterval)
	l.removeLocked(key)
}

func (l *Layer) publishLocked() {
	l.notifier.publish(l.items.snapshot())
}

func (l *Layer) recordLocked() layerRecord {
	return layerRecord{
		Name:      l.name,
		Config:    newRecordConfig(l.config),
		CreatedAt: l.createdAt.UnixMilli(),
		Items:     l.items.snapshot(),
	}
}

func (l *Layer) persistLocked() {
	if l.mirror == nil {
		return
	}
	if err := l.mirror.saveLayer(l.recordLocked()); err != nil {
		l.logger.Error("failed to persist layer: %v", err)
	}
}

// restore loads items without persisting or publishing per item, then
// publishes once and arms a timer for every restored item.
func (l *Layer) restore(items []Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range items {
		l.items.put(item)
	}
	if len(items) == 0 {
		return
	}
	l.publishLocked()
	for _, item := range items {
		l.armLocked(item.Key)
	}
}

// persistNow writes the layer's current state, used right after creation.
func (l *Layer) persistNow() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.persistLocked()
}

// teardown detaches the layer from the store, disarms its timers and
// removes every item with notifications.
func (l *Layer) teardown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mirror = nil
	l.timers.cancelAll()
	l.flushLocked()
}

// stop disarms all timers for good; items stay in memory.
func (l *Layer) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timers.stop()
}
