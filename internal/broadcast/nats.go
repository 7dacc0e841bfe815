package broadcast

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/logging"
)

// NatsBroadcaster publishes WorldUpdates over a shared NATS connection,
// for deployments running more than one gameserver process. Delivery uses
// core NATS publish/subscribe (at-most-once at the transport level);
// at-least-once delivery toward clients comes from the
// reconnect-and-resync path, not from NATS itself, since there is no
// durable stream to replay from.
type NatsBroadcaster struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNatsBroadcaster wires a Broadcaster over an already-connected *nats.Conn.
func NewNatsBroadcaster(conn *nats.Conn, logger *slog.Logger) *NatsBroadcaster {
	return &NatsBroadcaster{conn: conn, logger: logging.WithComponent(logger, "broadcast")}
}

func (b *NatsBroadcaster) Publish(subject string, update *WorldUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return apperr.Wrap(apperr.TransportError, "marshaling world update", err)
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return apperr.Wrap(apperr.TransportError, "publishing world update", err)
	}
	return nil
}

func (b *NatsBroadcaster) Subscribe(subject string) (*Subscription, error) {
	// The subscription must exist before the NATS handler can fire: a
	// message can arrive the instant conn.Subscribe returns.
	sub := newSubscription(subject, nil)
	natsSub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var update WorldUpdate
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			b.logger.Warn("dropping malformed world update", "subject", subject, "error", err)
			return
		}
		sub.deliver(&update)
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.TransportError, "subscribing to "+subject, err)
	}
	sub.closeFn = func() {
		_ = natsSub.Unsubscribe()
	}
	return sub, nil
}

func (b *NatsBroadcaster) Close() error {
	b.conn.Close()
	return nil
}
