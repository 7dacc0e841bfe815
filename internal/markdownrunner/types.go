package markdownrunner

import "github.com/aeonia-ai/gaia-runtime/internal/worldstate"

// llmResponse is the structured contract the LLM is instructed to return
// for every markdown command: {success, narrative, state_updates,
// available_actions, metadata}.
type llmResponse struct {
	Success          bool                     `json:"success"`
	Narrative        string                   `json:"narrative"`
	StateUpdates     []worldstate.WorldChange `json:"state_updates"`
	AvailableActions []string                 `json:"available_actions"`
	Metadata         map[string]any           `json:"metadata"`
}

// Result is what Run returns to the gateway/HTTP handler; it maps onto
// both the WebSocket action_response frame and the
// POST /experience/interact response body.
type Result struct {
	Success          bool
	Narrative        string
	StateUpdates     []worldstate.WorldChange
	AvailableActions []string
	Metadata         map[string]any
	// Version is the post-write version of the document the applied
	// state_updates should be stamped with; zero when nothing was written.
	Version int
}
