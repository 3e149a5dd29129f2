package cache

import (
	"context"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rxdi/cache/store"
)

// layerRecord is the persisted form of a layer, stored under its name.
type layerRecord struct {
	Name      string       `json:"name" msgpack:"name"`
	Config    recordConfig `json:"config" msgpack:"config"`
	CreatedAt int64        `json:"createdAt" msgpack:"createdAt"`
	Items     []Item       `json:"items" msgpack:"items"`
}

// recordConfig keeps the flush interval in milliseconds, null when disabled.
// Sub-millisecond intervals round up to 1ms so they never persist as 0.
type recordConfig struct {
	CacheFlushInterval *int64 `json:"cacheFlushInterval" msgpack:"cacheFlushInterval"`
	Persist            bool   `json:"persist" msgpack:"persist"`
}

func newRecordConfig(c LayerConfig) recordConfig {
	rc := recordConfig{Persist: c.Persist}
	if c.Expires() {
		ms := int64((c.FlushInterval + time.Millisecond - 1) / time.Millisecond)
		rc.CacheFlushInterval = &ms
	}
	return rc
}

func (rc recordConfig) layerConfig() LayerConfig {
	c := LayerConfig{Persist: rc.Persist}
	if rc.CacheFlushInterval != nil {
		c.FlushInterval = time.Duration(*rc.CacheFlushInterval) * time.Millisecond
	}
	return c
}

func (r layerRecord) createOptions() CreateOptions {
	cfg := r.Config.layerConfig()
	return CreateOptions{
		Name:      r.Name,
		Items:     r.Items,
		Config:    &cfg,
		CreatedAt: time.UnixMilli(r.CreatedAt),
	}
}

// mirror writes layers and the layer index to the persistent store.
// Index updates happen under the registry lock, layer writes under the
// owning layer's lock.
type mirror struct {
	ctx     context.Context
	store   store.Store
	codec   Codec
	timeout time.Duration
}

func (m *mirror) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, m.timeout)
}

func (m *mirror) saveLayer(rec layerRecord) error {
	buf, err := m.codec.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "cache: encode layer %q", rec.Name)
	}
	ctx, cancel := m.opCtx()
	defer cancel()
	return m.store.Set(ctx, rec.Name, buf)
}

func (m *mirror) loadLayer(name string) (layerRecord, bool, error) {
	ctx, cancel := m.opCtx()
	defer cancel()
	var rec layerRecord
	buf, found, err := m.store.Get(ctx, name)
	if err != nil || !found {
		return rec, false, err
	}
	if err := m.codec.Unmarshal(buf, &rec); err != nil {
		return rec, false, errors.Wrapf(err, "cache: decode layer %q", name)
	}
	if rec.Name == "" {
		rec.Name = name
	}
	return rec, true, nil
}

func (m *mirror) deleteLayer(name string) error {
	ctx, cancel := m.opCtx()
	defer cancel()
	return m.store.Remove(ctx, name)
}

func (m *mirror) readIndex() ([]string, bool, error) {
	ctx, cancel := m.opCtx()
	defer cancel()
	buf, found, err := m.store.Get(ctx, IndexKey)
	if err != nil || !found {
		return nil, false, err
	}
	var names []string
	if err := m.codec.Unmarshal(buf, &names); err != nil {
		return nil, false, errors.Wrap(err, "cache: decode layer index")
	}
	return names, true, nil
}

func (m *mirror) writeIndex(names []string) error {
	if names == nil {
		names = []string{}
	}
	buf, err := m.codec.Marshal(names)
	if err != nil {
		return errors.Wrap(err, "cache: encode layer index")
	}
	ctx, cancel := m.opCtx()
	defer cancel()
	return m.store.Set(ctx, IndexKey, buf)
}

func (m *mirror) dropIndex() error {
	ctx, cancel := m.opCtx()
	defer cancel()
	return m.store.Remove(ctx, IndexKey)
}

// indexLayer moves name to the end of the index, adding it if absent.
func (m *mirror) indexLayer(name string) error {
	names, _, err := m.readIndex()
	if err != nil {
		return err
	}
	names = slices.DeleteFunc(names, func(n string) bool { return n == name })
	return m.writeIndex(append(names, name))
}

func (m *mirror) unindexLayer(name string) error {
	names, found, err := m.readIndex()
	if err != nil || !found {
		return err
	}
	return m.writeIndex(slices.DeleteFunc(names, func(n string) bool { return n == name }))
}
