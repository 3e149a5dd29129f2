package cache

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// scheduler arms one-shot timers keyed by name. Every arming gets a fresh
// generation; a firing timer only takes effect if claim confirms its
// generation is still the armed one, which makes fire and cancel mutually
// exclusive even when Stop loses the race against the clock.
//
// scheduler has no lock of its own. The owner (a Layer or the Registry)
// must hold its mutex around every call, including claim from onFire.
type scheduler struct {
	clock   clockwork.Clock
	timers  map[string]armed
	gen     uint64
	stopped bool
}

type armed struct {
	timer clockwork.Timer
	gen   uint64
}

func newScheduler(clock clockwork.Clock) *scheduler {
	return &scheduler{
		clock:  clock,
		timers: make(map[string]armed),
	}
}

// schedule arms a timer for key, replacing any timer already armed for it.
// onFire runs on the timer goroutine without the owner's lock held.
func (s *scheduler) schedule(key string, d time.Duration, onFire func(key string, gen uint64)) {
	if s.stopped {
		return
	}
	s.cancel(key)
	s.gen++
	gen := s.gen
	s.timers[key] = armed{
		timer: s.clock.AfterFunc(d, func() { onFire(key, gen) }),
		gen:   gen,
	}
}

// cancel disarms the timer for key. It reports whether one was armed.
func (s *scheduler) cancel(key string) bool {
	a, ok := s.timers[key]
	if !ok {
		return false
	}
	a.timer.Stop()
	delete(s.timers, key)
	return true
}

// claim is called by a fired timer. It returns true exactly once per arming,
// and only if that arming was neither cancelled nor replaced.
func (s *scheduler) claim(key string, gen uint64) bool {
	a, ok := s.timers[key]
	if !ok || a.gen != gen {
		return false
	}
	delete(s.timers, key)
	return true
}

func (s *scheduler) pending(key string) bool {
	_, ok := s.timers[key]
	return ok
}

func (s *scheduler) len() int {
	return len(s.timers)
}

func (s *scheduler) cancelAll() {
	for key := range s.timers {
		s.cancel(key)
	}
}

// stop disarms everything and refuses further scheduling.
func (s *scheduler) stop() {
	s.cancelAll()
	s.stopped = true
}
