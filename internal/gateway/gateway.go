package gateway

import (
	"log/slog"
	"sync"

	"github.com/aeonia-ai/gaia-runtime/internal/broadcast"
	"github.com/aeonia-ai/gaia-runtime/internal/config"
	"github.com/aeonia-ai/gaia-runtime/internal/logging"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// Gateway is the long-lived collaborator behind both the WebSocket and HTTP
// surfaces: it owns the runtime's dispatcher, world state manager, token
// verifier, and broadcaster, and tracks which live sessions are subscribed
// to which broadcast subjects.
type Gateway struct {
	manager    *worldstate.Manager
	dispatcher *Dispatcher
	verifier   TokenVerifier
	broadcast  broadcast.Broadcaster
	logger     *slog.Logger

	mu   sync.Mutex
	subs map[*session]*broadcast.Subscription
}

// New wires a Gateway over the runtime's shared collaborators.
func New(manager *worldstate.Manager, dispatcher *Dispatcher, verifier TokenVerifier, caster broadcast.Broadcaster, logger *slog.Logger) *Gateway {
	return &Gateway{
		manager:    manager,
		dispatcher: dispatcher,
		verifier:   verifier,
		broadcast:  caster,
		logger:     logging.WithComponent(logger, "gateway"),
		subs:       make(map[*session]*broadcast.Subscription),
	}
}

// subscribe attaches a session to the broadcast subject appropriate for its
// experience's state model and starts a goroutine that forwards delivered
// WorldUpdates onto the session's own send channel.
func (g *Gateway) subscribe(s *session, experienceID, playerID string) {
	cfg, err := g.manager.LoadConfig(experienceID)
	if err != nil {
		g.logger.Warn("subscribe: loading config failed", "error", err)
		return
	}
	subject := broadcast.PlayerSubject(experienceID, playerID)
	if cfg.State.Model == config.ModelShared {
		subject = broadcast.ExperienceSubject(experienceID)
	}

	sub, err := g.broadcast.Subscribe(subject)
	if err != nil {
		g.logger.Warn("subscribe failed", "subject", subject, "error", err)
		return
	}

	g.mu.Lock()
	g.subs[s] = sub
	g.mu.Unlock()
	s.sub = sub

	go func() {
		for update := range sub.Updates() {
			s.deliverUpdate(update.Experience, update.Version, update.Changes, update.OriginPlayer, update.Timestamp)
		}
	}()
}

// unsubscribe tears down a session's broadcast subscription on disconnect.
func (g *Gateway) unsubscribe(s *session) {
	g.mu.Lock()
	sub, ok := g.subs[s]
	delete(g.subs, s)
	g.mu.Unlock()
	if ok {
		sub.Close()
	}
}
