// Package fastpath implements the structured, code-only command handlers:
// collect_item, drop_item, use_item, give_item, go, examine, inventory,
// and the admin operations. None of them call an LLM, so they respond in
// milliseconds. Each handler is a single struct implementing Handler and
// talking directly to the in-process worldstate.Manager.
package fastpath

import (
	"context"
	"fmt"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// Request is the normalized input to every fast-path handler.
type Request struct {
	ExperienceID string
	PlayerID     string
	Admin        bool
	Args         map[string]any
}

// Result is the uniform fast-path output contract: success=false never
// writes and never emits a WorldUpdate; success=true always bumps a
// version and emits exactly one WorldUpdate for mutating handlers, none
// for read-only ones.
type Result struct {
	Success  bool                     `json:"success"`
	Message  string                   `json:"message"`
	Metadata map[string]any           `json:"metadata,omitempty"`
	Changes  []worldstate.WorldChange `json:"changes,omitempty"`
	// Version is the post-write version of the document the diff should be
	// stamped with (the world's when any world-scoped path changed, else
	// the view's). Zero for read-only handlers.
	Version int `json:"version,omitempty"`
}

// Handler is a single structured action.
type Handler interface {
	Name() string
	Execute(ctx context.Context, mgr *worldstate.Manager, req Request) (*Result, error)
}

var registry = make(map[string]Handler)

func register(h Handler) {
	registry[h.Name()] = h
}

// Get returns the handler for a reserved structured action name, if any.
func Get(name string) (Handler, bool) {
	h, ok := registry[name]
	return h, ok
}

func init() {
	register(&CollectItemHandler{})
	register(&DropItemHandler{})
	register(&UseItemHandler{})
	register(&GiveItemHandler{})
	register(&GoHandler{})
	register(&ExamineHandler{})
	register(&InventoryHandler{})
	register(&AdminEditHandler{})
	register(&AdminExamineHandler{})
	register(&AdminWhereHandler{})
	register(&AdminResetHandler{})
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", apperr.New(apperr.MalformedInput, fmt.Sprintf("missing required argument %q", key))
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", apperr.New(apperr.MalformedInput, fmt.Sprintf("argument %q must be a non-empty string", key))
	}
	return s, nil
}

func optionalStringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
