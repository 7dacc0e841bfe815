package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.width == 0 {
		return "connecting...\n"
	}

	inputHeight := 3
	chatHeight := m.height - inputHeight

	messageStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	userStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	updateStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	loadingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1).
		Width(m.width - 4)

	chatPanel := lipgloss.NewStyle().
		Width(m.width).
		Height(chatHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1)

	var chatContent strings.Builder
	visibleMessages := m.messages
	maxMessages := chatHeight - 2
	if maxMessages < 1 {
		maxMessages = 1
	}
	if len(visibleMessages) > maxMessages {
		visibleMessages = visibleMessages[len(visibleMessages)-maxMessages:]
	}
	for i := 0; i < maxMessages-len(visibleMessages); i++ {
		chatContent.WriteString("\n")
	}

	contentWidth := m.width - 4
	for _, line := range visibleMessages {
		switch {
		case line == "":
			chatContent.WriteString("\n")
		case strings.HasPrefix(line, "> "):
			chatContent.WriteString(userStyle.Render(wrapAndIndent(line, contentWidth)) + "\n")
		case strings.HasPrefix(line, "[ERROR]") || strings.HasPrefix(line, "[DISCONNECTED]"):
			chatContent.WriteString(errorStyle.Render(wrapAndIndent(line, contentWidth)) + "\n")
		case strings.HasPrefix(line, "[WORLD_UPDATE]") || strings.HasPrefix(line, "[WELCOME]") || strings.HasPrefix(line, "[ADMIN]"):
			chatContent.WriteString(updateStyle.Render(wrapAndIndent(line, contentWidth)) + "\n")
		case line == "LOADING_ANIMATION":
			chatContent.WriteString(loadingStyle.Render(getLoadingAnimation(m.animationFrame)) + "\n")
		default:
			chatContent.WriteString(messageStyle.Render(wrapAndIndent(line, contentWidth)) + "\n")
		}
	}

	chat := chatPanel.Render(chatContent.String())
	input := inputStyle.Render(m.input + "│")
	return chat + "\n" + input
}

func wrapAndIndent(text string, width int) string {
	if width < 1 || len(text) <= width {
		return text
	}
	var result strings.Builder
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) <= width {
			line += " " + word
		} else {
			result.WriteString(line + "\n")
			line = word
		}
	}
	result.WriteString(line)
	return result.String()
}

func getLoadingAnimation(frame int) string {
	arc := []string{"◜", "◠", "◝", "◞", "◡", "◟"}
	return arc[frame%len(arc)]
}
