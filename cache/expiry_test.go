package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// owner mimics a Layer: it guards the scheduler and records claimed fires.
type owner struct {
	mu    sync.Mutex
	s     *scheduler
	fired []string
}

func newOwner(clock clockwork.Clock) *owner {
	return &owner{s: newScheduler(clock)}
}

func (o *owner) schedule(key string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.s.schedule(key, d, o.fire)
}

func (o *owner) cancel(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.s.cancel(key)
}

func (o *owner) fire(key string, gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s.claim(key, gen) {
		o.fired = append(o.fired, key)
	}
}

func (o *owner) firedKeys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.fired...)
}

func TestSchedulerFiresOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	o := newOwner(clock)
	o.schedule("k", time.Second)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return len(o.firedKeys()) == 1 }, waitFor, time.Millisecond)

	clock.Advance(time.Hour)
	assert.Never(t, func() bool { return len(o.firedKeys()) > 1 }, 30*time.Millisecond, 5*time.Millisecond)
	assert.False(t, o.cancel("k"))
}

func TestSchedulerCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	o := newOwner(clock)
	o.schedule("k", time.Second)
	assert.True(t, o.cancel("k"))
	assert.False(t, o.cancel("k"))

	clock.Advance(time.Minute)
	assert.Never(t, func() bool { return len(o.firedKeys()) > 0 }, 30*time.Millisecond, 5*time.Millisecond)
}

func TestSchedulerRescheduleReplaces(t *testing.T) {
	clock := clockwork.NewFakeClock()
	o := newOwner(clock)
	o.schedule("k", time.Second)
	clock.Advance(800 * time.Millisecond)
	o.schedule("k", time.Second)

	clock.Advance(800 * time.Millisecond)
	assert.Never(t, func() bool { return len(o.firedKeys()) > 0 }, 30*time.Millisecond, 5*time.Millisecond)

	clock.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool { return len(o.firedKeys()) == 1 }, waitFor, time.Millisecond)
}

func TestSchedulerStaleClaim(t *testing.T) {
	s := newScheduler(clockwork.NewFakeClock())
	noop := func(string, uint64) {}
	s.schedule("k", time.Second, noop)
	stale := s.timers["k"].gen
	s.schedule("k", time.Second, noop)

	assert.False(t, s.claim("k", stale))
	assert.True(t, s.pending("k"))
	assert.True(t, s.claim("k", s.timers["k"].gen))
	assert.False(t, s.pending("k"))
}

func TestSchedulerStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	o := newOwner(clock)
	o.schedule("a", time.Second)
	o.schedule("b", time.Second)

	o.mu.Lock()
	o.s.stop()
	o.mu.Unlock()
	o.schedule("c", time.Second)

	clock.Advance(time.Minute)
	assert.Never(t, func() bool { return len(o.firedKeys()) > 0 }, 30*time.Millisecond, 5*time.Millisecond)
	o.mu.Lock()
	assert.Zero(t, o.s.len())
	o.mu.Unlock()
}
