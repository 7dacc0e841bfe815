package markdownrunner

import (
	"encoding/json"
	"fmt"

	"github.com/aeonia-ai/gaia-runtime/internal/commands"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// buildSystemPrompt wraps a command's markdown body (rules, response-format
// contract, examples) with the fixed instruction that ties it to the
// state_updates wire contract. The body itself is authored content; only
// the framing around it is runtime-owned.
func buildSystemPrompt(cmd *commands.CommandRecord) string {
	return fmt.Sprintf(`You are the rules engine for a single game command.

%s

Respond with a single JSON object and nothing else, of the exact shape:
{
  "success": boolean,
  "narrative": string,
  "state_updates": [
    {"path": string, "operation": "set"|"append"|"remove", "value": any, "item": any, "item_id": string}
  ],
  "available_actions": [string],
  "metadata": object
}

A path beginning with "player.", "progress." or "session." targets the
invoking player's own view document; any other path targets the world
document for this experience. Only emit a state_updates entry for a change this command's
rules actually authorize. If nothing about the world or the player's view
changes, return an empty state_updates array.`, cmd.Body)
}

// buildUserPrompt assembles the per-invocation context: the relevant world
// subtree, the player's view, their inventory, recent conversation, and
// the raw message, as labeled plain-text blocks.
func buildUserPrompt(world *worldstate.World, view *worldstate.View, historyContext, rawMessage string) (string, error) {
	loc, ok := world.Locations[view.Player.CurrentLocation]
	if !ok {
		return "", fmt.Errorf("current location %q not found in world", view.Player.CurrentLocation)
	}

	subtree := map[string]any{
		"location_id": view.Player.CurrentLocation,
		"location":    loc,
		"global_state": world.GlobalState,
	}
	subtreeJSON, err := json.MarshalIndent(subtree, "", "  ")
	if err != nil {
		return "", err
	}
	viewJSON, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf("WORLD CONTEXT:\n%s\n\nPLAYER VIEW:\n%s\n", subtreeJSON, viewJSON)
	if historyContext != "" {
		prompt += "\n" + historyContext + "\n"
	}
	prompt += fmt.Sprintf("\nPLAYER MESSAGE: %q\n", rawMessage)
	return prompt, nil
}
