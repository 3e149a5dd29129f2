package cache_test

import (
	"context"
	"fmt"

	"github.com/rxdi/cache/cache"
	"github.com/rxdi/cache/logger"
	"github.com/rxdi/cache/store"
)

func Example() {
	ctx := context.Background()
	r := cache.NewRegistry(ctx,
		cache.WithLayerConfig(cache.LayerConfig{}),
		cache.WithLogger(logger.NewTestLogger()),
	)
	defer r.Close()

	users := r.Get("users")
	users.Put(cache.Item{Key: "1", Data: "pesho"})

	item, ok := users.Get("1")
	fmt.Println(item.Data, ok)

	sub := users.Subscribe()
	defer sub.Close()
	fmt.Println(len(<-sub.C()))
	// Output:
	// pesho true
	// 1
}

func ExampleRegistry_FlushCache() {
	r := cache.NewRegistry(context.Background(),
		cache.WithStore(store.NewMemory()),
		cache.WithLayerConfig(cache.LayerConfig{Persist: true}),
		cache.WithLogger(logger.NewTestLogger()),
	)
	defer r.Close()

	r.Get("a").Put(cache.Item{Key: "k", Data: 1})
	r.Get("b")

	r.FlushCache(false)
	for _, l := range r.Layers() {
		fmt.Println(l.Name(), l.Len())
	}

	r.FlushCache(true)
	fmt.Println(len(r.Layers()))
	// Output:
	// a 0
	// b 0
	// 0
}
