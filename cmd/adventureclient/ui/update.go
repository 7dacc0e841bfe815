package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case animationTickMsg:
		if m.loading {
			m.animationFrame++
			return m, animationTimer()
		}
		return m, nil

	case serverFrameMsg:
		m = m.applyFrame(msg.frame)
		return m, waitForServerMsg(m.client)

	case connectionClosedMsg:
		if msg.err != nil {
			m.messages = append(m.messages, fmt.Sprintf("[DISCONNECTED] %v", msg.err))
		} else {
			m.messages = append(m.messages, "[DISCONNECTED]")
		}
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.client.Close()
			return m, tea.Quit

		case "enter":
			if strings.TrimSpace(m.input) == "" || m.loading {
				return m, nil
			}
			text := m.input
			m.input = ""
			m.messages = append(m.messages, "> "+text)
			m.loading = true
			m.animationFrame = 0
			m.messages = append(m.messages, "LOADING_ANIMATION")

			action, payload := parseInput(text)
			if err := m.client.SendAction(action, text, payload); err != nil {
				m.messages = append(m.messages, fmt.Sprintf("[ERROR] %v", err))
				m.loading = false
				return m, nil
			}
			return m, animationTimer()

		case "backspace":
			if len(m.input) > 0 && !m.loading {
				m.input = m.input[:len(m.input)-1]
			}
			return m, nil

		default:
			if len(msg.String()) == 1 && !m.loading {
				m.input += msg.String()
			}
			return m, nil
		}
	}

	return m, nil
}

// applyFrame folds one server message into the transcript, stripping any
// pending loading animation line once a response arrives.
func (m Model) applyFrame(frame serverMessage) Model {
	m.loading = false
	if len(m.messages) > 0 && m.messages[len(m.messages)-1] == "LOADING_ANIMATION" {
		m.messages = m.messages[:len(m.messages)-1]
	}

	switch frame.Type {
	case "welcome":
		m.experience = frame.Experience
		m.messages = append(m.messages, fmt.Sprintf("[WELCOME] experience=%s version=%d", frame.Experience, frame.Version))
	case "action_response":
		if frame.Message != "" {
			m.messages = append(m.messages, frame.Message)
		}
		if !frame.Success && frame.Error != "" {
			m.messages = append(m.messages, fmt.Sprintf("[%s] %s", frame.Error, frame.Message))
		}
		if len(frame.AvailableActions) > 0 {
			m.messages = append(m.messages, "Available: "+strings.Join(frame.AvailableActions, ", "))
		}
	case "world_update":
		m.messages = append(m.messages, fmt.Sprintf("[WORLD_UPDATE] version=%d from=%s (%d change(s))", frame.Version, frame.OriginPlayer, len(frame.Changes)))
	default:
		m.messages = append(m.messages, fmt.Sprintf("[%s]", frame.Type))
	}
	m.messages = append(m.messages, "")
	return m
}

// parseInput splits a typed line into an action token and a generic
// argument payload, the same convention the HTTP interact endpoint uses,
// so @admin commands and plain commands both reach the gateway correctly.
func parseInput(text string) (string, map[string]any) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	action := fields[0]
	if !strings.HasPrefix(action, "@") {
		action = strings.ToLower(action)
	}
	rest := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
	if rest == "" {
		return action, nil
	}
	return action, map[string]any{
		"destination":   rest,
		"instance_id":   rest,
		"target_npc_id": rest,
		"object_id":     rest,
		"text":          rest,
		"object_type":   fields[0],
		"path":          secondField(fields),
		"value":         rest,
	}
}

func secondField(fields []string) string {
	if len(fields) > 1 {
		return fields[1]
	}
	return ""
}

func animationTimer() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(time.Time) tea.Msg {
		return animationTickMsg{}
	})
}
