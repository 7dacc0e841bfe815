package broadcast

import "sync"

// subscriberQueueDepth bounds how many undelivered updates a single slow
// subscriber can accumulate before the broadcaster starts dropping and
// marks it desynced.
const subscriberQueueDepth = 32

// Broadcaster publishes WorldUpdates to subject-scoped subscribers and lets
// callers subscribe to a subject to receive them.
type Broadcaster interface {
	Publish(subject string, update *WorldUpdate) error
	Subscribe(subject string) (*Subscription, error)
	Close() error
}

// Subscription is a single subscriber's inbox. Updates arrive on Updates();
// Desynced reports whether a drop happened since the last ForceResync.
type Subscription struct {
	subject  string
	updates  chan *WorldUpdate
	desynced chan struct{}
	closeFn  func()

	mu     sync.Mutex
	closed bool
}

// Updates returns the channel WorldUpdates arrive on.
func (s *Subscription) Updates() <-chan *WorldUpdate {
	return s.updates
}

// Desynced reports (non-blocking) whether this subscriber has dropped at
// least one update since it last called ForceResync.
func (s *Subscription) Desynced() bool {
	select {
	case <-s.desynced:
		// Put the signal back; Desynced is a peek, ForceResync consumes it.
		select {
		case s.desynced <- struct{}{}:
		default:
		}
		return true
	default:
		return false
	}
}

// ForceResync clears the desynced flag; callers do this once they've
// replayed a full get_world_state snapshot to the subscriber.
func (s *Subscription) ForceResync() {
	select {
	case <-s.desynced:
	default:
	}
}

// MarkDesynced flags the subscriber as having missed at least one update,
// forcing a full resync before it can be considered current again. The
// broadcaster calls this itself on a queue overflow; a delivery layer
// further downstream (e.g. a session's own bounded send queue) may also
// call it when it drops an update the broadcaster already handed over.
func (s *Subscription) MarkDesynced() {
	select {
	case s.desynced <- struct{}{}:
	default:
	}
}

// deliver attempts a non-blocking send; a full queue drops the update and
// marks the subscriber desynced rather than blocking the publisher. The
// closed check and the send share one lock because a transport callback
// (e.g. an in-flight NATS message handler) can race with Close.
func (s *Subscription) deliver(update *WorldUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.updates <- update:
	default:
		s.MarkDesynced()
	}
}

// Close releases the subscription and closes the Updates() channel so a
// range loop over it terminates. Safe to call more than once.
func (s *Subscription) Close() {
	if !s.markClosed() {
		return
	}
	if s.closeFn != nil {
		s.closeFn()
	}
	close(s.updates)
}

// closeChannelOnly closes Updates() without invoking closeFn, for callers
// that are already holding the lock closeFn would otherwise try to take
// (e.g. a broadcaster tearing down every subscription at once on Close).
func (s *Subscription) closeChannelOnly() {
	if !s.markClosed() {
		return
	}
	close(s.updates)
}

// markClosed flips the closed flag exactly once, waiting out any deliver
// in flight so the updates channel is never closed under a send.
func (s *Subscription) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

func newSubscription(subject string, closeFn func()) *Subscription {
	return &Subscription{
		subject:  subject,
		updates:  make(chan *WorldUpdate, subscriberQueueDepth),
		desynced: make(chan struct{}, 1),
		closeFn:  closeFn,
	}
}
