// Command adventureclient is a reference terminal client for the session
// gateway: a bubbletea chat UI over one WebSocket connection, doubling as
// the admin CLI surface when its token carries admin claims (its @-prefixed
// input is routed by the gateway exactly like any other client's).
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aeonia-ai/gaia-runtime/cmd/adventureclient/ui"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "gateway host:port")
	token := flag.String("token", "", "bearer token (JWT) identifying the player")
	experience := flag.String("experience", "", "experience id to join on connect")
	admin := flag.Bool("admin", false, "treat this session as an admin session for local display purposes")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "adventureclient: -token is required")
		os.Exit(1)
	}

	client, err := ui.Dial(*addr, *token, *experience)
	if err != nil {
		fmt.Fprintln(os.Stderr, "adventureclient:", err)
		os.Exit(1)
	}
	defer client.Close()

	model := ui.NewModel(client, *admin, *experience)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "adventureclient:", err)
		os.Exit(1)
	}
}
