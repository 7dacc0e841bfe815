// Package gateway is the session layer: a WebSocket message plane carrying
// action / welcome / action_response / world_update JSON frames, plus the
// POST /experience/interact HTTP alternative for clients without a
// streaming connection. Each connection gets its own session with a
// read pump and a write pump.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/broadcast"
	"github.com/aeonia-ai/gaia-runtime/internal/history"
	"github.com/aeonia-ai/gaia-runtime/internal/logging"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxHistorySize = 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientAction is the client -> server message plane: {type: "action",
// action, ...payload}.
type clientAction struct {
	Type    string         `json:"type"`
	Action  string         `json:"action"`
	Message string         `json:"message,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// serverMessage is the discriminated-union server -> client message plane
// (welcome / action_response / world_update).
type serverMessage struct {
	Type             string                   `json:"type"`
	Experience       string                   `json:"experience,omitempty"`
	World            *worldstate.World        `json:"world,omitempty"`
	View             *worldstate.View         `json:"view,omitempty"`
	Version          int                      `json:"version,omitempty"`
	Success          bool                     `json:"success,omitempty"`
	Message          string                   `json:"message,omitempty"`
	Metadata         map[string]any           `json:"metadata,omitempty"`
	Action           string                   `json:"action,omitempty"`
	Changes          []worldstate.WorldChange `json:"changes,omitempty"`
	OriginPlayer     string                   `json:"origin_player,omitempty"`
	Timestamp        time.Time                `json:"timestamp,omitempty"`
	AvailableActions []string                 `json:"available_actions,omitempty"`
	Error            string                   `json:"error,omitempty"`
}

// session is the per-connection state: the authenticated player, the
// experience they joined, their admin flag, and the last world version
// this connection has applied.
type session struct {
	gateway      *Gateway
	conn         *websocket.Conn
	logger       *slog.Logger
	connectionID string

	playerID     string
	admin        bool
	experienceID string
	history      *history.History
	sub          *broadcast.Subscription

	mu                 sync.Mutex
	lastAppliedVersion int
	sendClosed         bool

	send     chan serverMessage
	inFlight chan struct{} // capacity 1: enforces the per-connection in-flight budget
}

// enqueue hands msg to the write pump. It never blocks and never touches a
// closed channel: the broadcast forwarding goroutine can race with
// readPump's teardown, so the closed check and the send share one lock. A
// full queue drops the message and reports false so the caller can mark
// the session desynced instead of stalling the publisher.
func (s *session) enqueue(msg serverMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendClosed {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

func (s *session) closeSend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sendClosed {
		s.sendClosed = true
		close(s.send)
	}
}

// ServeWS upgrades an HTTP request to a WebSocket session, authenticates
// it, and runs its read/write pumps until the connection closes.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	identity, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	connectionID := uuid.NewString()
	sess := &session{
		gateway:      g,
		conn:         conn,
		logger:       logging.WithComponent(g.logger, "session").With("connection_id", connectionID),
		connectionID: connectionID,
		playerID:     identity.PlayerID,
		admin:        identity.Admin,
		history:      history.New(maxHistorySize),
		send:         make(chan serverMessage, 16),
		inFlight:     make(chan struct{}, 1),
	}

	experienceID := r.URL.Query().Get("experience")
	if err := sess.bootstrap(r.Context(), experienceID); err != nil {
		// The write pump never starts for a failed bootstrap, so the
		// error frame is written directly before closing.
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(serverMessage{
			Type:    "action_response",
			Success: false,
			Message: err.Error(),
			Error:   string(apperr.KindOf(err)),
		})
		conn.Close()
		return
	}

	go sess.writePump()
	sess.readPump()
}

// bootstrap loads the player's profile, ensures their view exists for the
// requested experience, subscribes to the broadcaster, and sends welcome.
func (s *session) bootstrap(ctx context.Context, experienceID string) error {
	if _, err := s.gateway.manager.GetPlayerProfile(s.playerID); err != nil {
		return err
	}
	if experienceID == "" {
		s.enqueue(serverMessage{Type: "welcome"})
		return nil
	}

	if _, err := s.gateway.manager.EnsurePlayerInitialized(experienceID, s.playerID); err != nil {
		return err
	}
	s.experienceID = experienceID

	world, err := s.gateway.manager.GetWorldState(experienceID, s.playerID)
	if err != nil {
		return err
	}
	view, err := s.gateway.manager.GetPlayerView(experienceID, s.playerID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lastAppliedVersion = world.Metadata.Version
	s.mu.Unlock()

	s.gateway.subscribe(s, experienceID, s.playerID)

	s.enqueue(serverMessage{
		Type:       "welcome",
		Experience: experienceID,
		World:      world,
		View:       view,
		Version:    world.Metadata.Version,
	})
	return nil
}

func (s *session) readPump() {
	defer func() {
		s.gateway.unsubscribe(s)
		s.closeSend()
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var action clientAction
		if err := json.Unmarshal(data, &action); err != nil {
			s.sendError(apperr.New(apperr.MalformedInput, "could not parse action message"))
			continue
		}
		if action.Type != "action" {
			s.sendError(apperr.New(apperr.MalformedInput, "unsupported message type"))
			continue
		}

		select {
		case s.inFlight <- struct{}{}:
			s.resyncIfNeeded()
			s.handleAction(action)
			<-s.inFlight
		default:
			// A second action arrived while one was still in flight;
			// each connection gets a budget of exactly one.
			s.sendError(apperr.New(apperr.MalformedInput, "an action is already in flight on this connection"))
		}
	}
}

func (s *session) handleAction(action clientAction) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if action.Message != "" {
		s.history.AddPlayerAction(action.Message)
	}

	result, err := s.gateway.dispatcher.Dispatch(ctx, s.experienceID, s.playerID, s.admin, action.Action, action.Payload, action.Message, s.history)
	if err != nil {
		s.history.AddError(err)
		s.sendError(err)
		return
	}
	if result.Message != "" {
		s.history.AddNarratorResponse(result.Message)
	}

	s.enqueue(serverMessage{
		Type:             "action_response",
		Success:          result.Success,
		Message:          result.Message,
		Metadata:         result.Metadata,
		Action:           action.Action,
		AvailableActions: result.AvailableActions,
	})
}

// resyncIfNeeded replays a full world/view snapshot when this session's
// subscription has dropped at least one update since its last resync: a
// desynced subscriber is forced back in sync on its next interaction
// rather than left to drift on a partial diff history.
func (s *session) resyncIfNeeded() {
	if s.sub == nil || !s.sub.Desynced() || s.experienceID == "" {
		return
	}

	world, err := s.gateway.manager.GetWorldState(s.experienceID, s.playerID)
	if err != nil {
		s.logger.Warn("resync: reading world failed", "error", err)
		return
	}
	view, err := s.gateway.manager.GetPlayerView(s.experienceID, s.playerID)
	if err != nil {
		s.logger.Warn("resync: reading view failed", "error", err)
		return
	}

	s.mu.Lock()
	s.lastAppliedVersion = world.Metadata.Version
	s.mu.Unlock()
	s.enqueue(serverMessage{
		Type:       "welcome",
		Experience: s.experienceID,
		World:      world,
		View:       view,
		Version:    world.Metadata.Version,
	})
	s.sub.ForceResync()
}

func (s *session) sendError(err error) {
	kind := apperr.KindOf(err)
	payload := map[string]any{}
	if ae, ok := err.(*apperr.Error); ok && ae.Payload != nil {
		payload = ae.Payload
	}
	s.enqueue(serverMessage{
		Type:     "action_response",
		Success:  false,
		Message:  err.Error(),
		Error:    string(kind),
		Metadata: payload,
	})
}

// deliverUpdate pushes a broadcast WorldUpdate to this session, ignoring
// ones this connection has already applied (at-least-once delivery means
// a receiver must tolerate duplicates).
func (s *session) deliverUpdate(experience string, version int, changes []worldstate.WorldChange, origin string, ts time.Time) {
	s.mu.Lock()
	if version <= s.lastAppliedVersion {
		s.mu.Unlock()
		return
	}
	s.lastAppliedVersion = version
	s.mu.Unlock()

	delivered := s.enqueue(serverMessage{
		Type:         "world_update",
		Experience:   experience,
		Version:      version,
		Changes:      changes,
		OriginPlayer: origin,
		Timestamp:    ts,
	})
	if !delivered && s.sub != nil {
		s.sub.MarkDesynced()
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
