package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Model is the adventureclient's bubbletea model: a chat transcript plus a
// single-line input, fed by frames read off one gateway WebSocket
// connection.
type Model struct {
	messages       []string
	input          string
	width          int
	height         int
	client         *Client
	admin          bool
	experience     string
	loading        bool
	animationFrame int
}

// NewModel wires a Model around an already-dialed gateway connection.
func NewModel(client *Client, admin bool, experience string) Model {
	messages := []string{
		"Connected. Type a command and press enter.",
		"",
	}
	if admin {
		messages = append(messages, "[ADMIN] session authorized for @-prefixed commands")
		messages = append(messages, "")
	}
	return Model{
		messages:   messages,
		client:     client,
		admin:      admin,
		experience: experience,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForServerMsg(m.client)
}

type serverFrameMsg struct{ frame serverMessage }
type connectionClosedMsg struct{ err error }
type animationTickMsg struct{}

func waitForServerMsg(c *Client) tea.Cmd {
	return func() tea.Msg {
		select {
		case frame, ok := <-c.Incoming:
			if !ok {
				return connectionClosedMsg{}
			}
			return serverFrameMsg{frame: frame}
		case err := <-c.Errors:
			return connectionClosedMsg{err: err}
		}
	}
}
