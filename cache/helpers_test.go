package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rxdi/cache/logger"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *clockwork.FakeClock, *logger.TestLogger) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	log := logger.NewTestLogger()
	base := []Option{WithClock(clock), WithLogger(log)}
	r := NewRegistry(context.Background(), append(base, opts...)...)
	t.Cleanup(func() { _ = r.Close() })
	return r, clock, log
}

func receive[T any](t *testing.T, sub *Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(waitFor):
		require.FailNow(t, "timed out waiting for notification")
	}
	var zero T
	return zero
}

func requireSilent[T any](t *testing.T, sub *Subscription[T]) {
	t.Helper()
	select {
	case v := <-sub.C():
		require.FailNowf(t, "unexpected notification", "%v", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func absent(l *Layer, key string) func() bool {
	return func() bool {
		_, ok := l.Get(key)
		return !ok
	}
}
