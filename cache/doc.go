// Package cache provides an in-process, multi-layer key/value cache with
// time based eviction, optional mirroring to a persistent store and change
// notifications.
//
// # Registry and Layers
//
// A [Registry] owns a set of named [Layer] values. [Registry.Get] and
// [Registry.Create] are idempotent by name: asking for an existing layer
// returns it untouched, contents and timers included.
//
//	r := cache.NewRegistry(ctx)
//	users := r.Get("users")
//	users.Put(cache.Item{Key: "42", Data: user})
//	item, ok := users.Get("42")
//
// Each layer has a [LayerConfig]. Its FlushInterval is used twice: every
// item expires that long after its last [Layer.Put], and the layer itself is
// removed from the registry that long after its creation time. A zero
// FlushInterval disables both. Layers created with an old CreatedAt (for
// example when rebuilt from a store) are evicted straight away if they have
// already outlived their interval.
//
// [Registry.FlushCache] removes every layer. Without force the same names are
// recreated empty; with force the persisted index is dropped too, so the
// next registry built on the same store starts from nothing.
//
// # Notifications
//
// [Layer.Subscribe] delivers the full item list, most recently put last, on
// every mutation. [Layer.SubscribeKey] delivers a single item while it is
// present, and [Registry.Subscribe] delivers the registered layer list.
// Every stream hands the latest value to a new subscriber immediately.
//
// Delivery is last-value: each [Subscription] buffers one value and a newer
// publish replaces one that has not been received yet. A slow consumer sees
// the most recent state, never a stale one, but may skip intermediate states.
// Values always arrive in mutation order for a given layer.
//
//	sub := users.Subscribe()
//	defer sub.Close()
//	for items := range sub.C() {
//	    render(items)
//	}
//
// # Persistence
//
// Pass a [store.Store] with [WithStore]. The registry probes it by writing and
// removing a throwaway key; if that fails, a warning is logged once and the
// registry runs memory-only. Nothing else about the API changes.
//
// Layers whose config has Persist set are written to the store under their
// name after every mutation, and their names are kept in an ordered index
// under [IndexKey]. When the registry's own layer config has Persist set, a
// new registry rebuilds every indexed layer on construction. Store failures
// after the probe are logged and never returned to callers.
//
// Layers are encoded with [JSONCodec] by default; [MsgpackCodec] is also
// available. Data read back from a store is whatever the codec produced
// (maps, slices, float64 or int64 numbers), so use [GetAs] or [Decode] to get
// typed values back.
//
// # Read-through Fetch
//
// [Fetch] serves a cached value when present and otherwise calls a [Fetcher],
// stores the result and returns it. [FetchWith] adds structured keys built
// with [ParamsKey]. Concurrent misses for the same key share one call.
// [HTTPFetcher] is a ready-made Fetcher for JSON endpoints, guarded by a
// [resilience.CircuitBreaker].
//
//	type Profile struct {
//	    Name string `json:"name"`
//	}
//	p, err := cache.Fetch[Profile](ctx, r.Get("profiles"), cache.NewHTTPFetcher(), url, true)
//
// Fetch errors are returned as-is, wrapped with the identifier; nothing is
// cached for a failed fetch.
//
// # Concurrency
//
// All types are safe for concurrent use. Each layer serialises its item map,
// expiry timers, notifications and store writes under one mutex, so an
// explicit removal and a firing timer for the same key never both take
// effect. Registry operations take the registry lock before any layer lock.
package cache
