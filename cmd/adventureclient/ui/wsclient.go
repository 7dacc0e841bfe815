package ui

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// serverMessage mirrors the gateway's welcome/action_response/world_update
// wire shape; fields unused by a given type are simply left zero.
type serverMessage struct {
	Type             string           `json:"type"`
	Experience       string           `json:"experience,omitempty"`
	World            json.RawMessage  `json:"world,omitempty"`
	View             json.RawMessage  `json:"view,omitempty"`
	Version          int              `json:"version,omitempty"`
	Success          bool             `json:"success,omitempty"`
	Message          string           `json:"message,omitempty"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
	Action           string           `json:"action,omitempty"`
	Changes          []json.RawMessage `json:"changes,omitempty"`
	OriginPlayer     string           `json:"origin_player,omitempty"`
	AvailableActions []string         `json:"available_actions,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// Client is a thin wrapper over one gateway WebSocket connection: a single
// long-lived connection, one goroutine pumping inbound frames onto a Go
// channel the UI's Update loop consumes as tea.Msg values.
type Client struct {
	conn     *websocket.Conn
	Incoming chan serverMessage
	Errors   chan error
}

// Dial opens a WebSocket session against the gateway, authenticating with
// token and optionally pinning an experience up front.
func Dial(addr, token, experience string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	q := u.Query()
	q.Set("token", token)
	if experience != "" {
		q.Set("experience", experience)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing gateway: %w", err)
	}

	c := &Client{
		conn:     conn,
		Incoming: make(chan serverMessage, 32),
		Errors:   make(chan error, 1),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.Incoming)
	for {
		var msg serverMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.Errors <- err
			return
		}
		c.Incoming <- msg
	}
}

// SendAction sends one {type: "action", action, message, payload} frame.
func (c *Client) SendAction(action, message string, payload map[string]any) error {
	frame := map[string]any{
		"type":    "action",
		"action":  action,
		"message": message,
		"payload": payload,
	}
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(frame)
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
