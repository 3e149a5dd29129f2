package cache

import "sync"

// Subscription is one consumer's view of a notification stream. The most
// recent value is delivered immediately on subscribe; after that every
// publish replaces any value the consumer has not yet received, so a slow
// consumer always sees the latest state but may skip intermediate ones.
//
// The producer never closes a Subscription. Close only detaches this
// consumer and closes its channel.
type Subscription[T any] struct {
	ch     chan T
	cancel func()
	once   sync.Once
}

// C returns the channel values are delivered on. It is closed by Close.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close stops delivery to this subscription. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(s.cancel)
}

// offer replaces any undelivered value with v. Only the notifier sends, and
// always while holding its lock, so the buffer has room after the drain.
func (s *Subscription[T]) offer(v T) {
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}

// notifier holds the latest published value and fans it out to subscribers.
type notifier[S any] struct {
	mu     sync.Mutex
	latest S
	nextID uint64
	sinks  map[uint64]func(S)
}

func newNotifier[S any](initial S) *notifier[S] {
	return &notifier[S]{
		latest: initial,
		sinks:  make(map[uint64]func(S)),
	}
}

func (n *notifier[S]) publish(v S) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.latest = v
	for _, sink := range n.sinks {
		sink(v)
	}
}

func (n *notifier[S]) current() S {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.latest
}

func (n *notifier[S]) subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sinks)
}

// subscribe registers a consumer. pick maps each published value to what
// the consumer receives; returning false skips that publish.
func subscribe[S, T any](n *notifier[S], pick func(S) (T, bool)) *Subscription[T] {
	sub := &Subscription[T]{ch: make(chan T, 1)}
	sink := func(v S) {
		if out, ok := pick(v); ok {
			sub.offer(out)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.sinks[id] = sink
	sub.cancel = func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.sinks, id)
		close(sub.ch)
	}
	sink(n.latest)
	return sub
}

func identity[S any](v S) (S, bool) {
	return v, true
}
