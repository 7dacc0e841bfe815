package broadcast

import (
	"log/slog"
	"sync"

	"github.com/aeonia-ai/gaia-runtime/internal/logging"
)

// MemoryBroadcaster is an in-process, single-node fan-out broadcaster. It
// is the default transport for the reference filesystem deployment, where
// there is exactly one gameserver process and no need for a broker.
type MemoryBroadcaster struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewMemoryBroadcaster returns a ready-to-use in-process Broadcaster.
func NewMemoryBroadcaster(logger *slog.Logger) *MemoryBroadcaster {
	return &MemoryBroadcaster{
		logger: logging.WithComponent(logger, "broadcast"),
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

func (b *MemoryBroadcaster) Publish(subject string, update *WorldUpdate) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[subject] {
		sub.deliver(update)
	}
	b.logger.Debug("published world update", "subject", subject, "version", update.Version, "subscribers", len(b.subs[subject]))
	return nil
}

func (b *MemoryBroadcaster) Subscribe(subject string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[subject] == nil {
		b.subs[subject] = make(map[*Subscription]struct{})
	}
	var sub *Subscription
	sub = newSubscription(subject, func() {
		b.mu.Lock()
		delete(b.subs[subject], sub)
		b.mu.Unlock()
	})
	b.subs[subject][sub] = struct{}{}
	return sub, nil
}

func (b *MemoryBroadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subject := range b.subs {
		for sub := range subject {
			sub.closeChannelOnly()
		}
	}
	b.subs = make(map[string]map[*Subscription]struct{})
	return nil
}
