// Package markdownrunner implements the markdown/LLM command path: it
// loads a command's markdown body, assembles a prompt from the current
// world/view context, invokes the LLM interface for a structured JSON
// completion, and applies the returned state_updates under the
// normal locking/versioning discipline. A second, prose-only call
// produces narrative only when the structured call returned none. Neither
// call sets a sampling temperature; both use the LLM service's defaults.
package markdownrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/commands"
	"github.com/aeonia-ai/gaia-runtime/internal/history"
	"github.com/aeonia-ai/gaia-runtime/internal/llm"
	"github.com/aeonia-ai/gaia-runtime/internal/logging"
	"github.com/aeonia-ai/gaia-runtime/internal/pathresolver"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

const (
	maxStructuredTokens = 800
	maxNarrativeTokens  = 300
)

// Runner ties the command registry, the LLM service, and the state manager
// together for the markdown path.
type Runner struct {
	manager   *worldstate.Manager
	llm       *llm.Service
	completer *logging.CompletionLogger
	logger    *slog.Logger
}

// New wires a Runner. completer may be nil (completion logging disabled).
func New(manager *worldstate.Manager, llmService *llm.Service, completer *logging.CompletionLogger, logger *slog.Logger) *Runner {
	return &Runner{
		manager:   manager,
		llm:       llmService,
		completer: completer,
		logger:    logging.WithComponent(logger, "markdownrunner"),
	}
}

// Run executes one markdown command invocation end to end.
func (r *Runner) Run(ctx context.Context, experienceID, playerID string, cmd *commands.CommandRecord, rawMessage string, hist *history.History) (*Result, error) {
	view, err := r.manager.GetPlayerView(experienceID, playerID)
	if err != nil {
		return nil, err
	}
	world, err := r.manager.GetWorldState(experienceID, playerID)
	if err != nil {
		return nil, err
	}

	historyContext := ""
	if hist != nil {
		historyContext = hist.BuildContext()
	}
	userPrompt, err := buildUserPrompt(world, view, historyContext, rawMessage)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidStateUpdate, "assembling command context", err)
	}
	systemPrompt := buildSystemPrompt(cmd)

	start := time.Now()
	raw, err := r.llm.CompleteJSON(ctx, llm.JSONCompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    maxStructuredTokens,
	})
	elapsed := time.Since(start)
	if err != nil {
		r.logCompletion(world, rawMessage, systemPrompt, "", elapsed, err)
		return nil, apperr.Wrap(apperr.LlmUnavailable, fmt.Sprintf("command %q: LLM call failed", cmd.Command), err)
	}
	r.logCompletion(world, rawMessage, systemPrompt, raw, elapsed, nil)

	var resp llmResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &resp); err != nil {
		return nil, apperr.Wrap(apperr.MalformedResponse, fmt.Sprintf("command %q: could not parse LLM response", cmd.Command), err)
	}

	if !resp.Success {
		return &Result{
			Success:          false,
			Narrative:        resp.Narrative,
			AvailableActions: resp.AvailableActions,
			Metadata:         resp.Metadata,
		}, nil
	}

	worldUpdates, viewUpdates := splitByTarget(resp.StateUpdates)
	if err := validateUpdates(world, view, worldUpdates, viewUpdates); err != nil {
		return nil, err
	}

	var appliedChanges []worldstate.WorldChange
	var version int
	if len(worldUpdates) > 0 {
		updatedWorld, changes, err := r.manager.UpdateWorldState(experienceID, playerID, func(w *worldstate.World) (*worldstate.World, []worldstate.WorldChange, error) {
			for _, change := range worldUpdates {
				if err := applyChange(w, change); err != nil {
					return nil, nil, err
				}
			}
			return w, worldUpdates, nil
		})
		if err != nil {
			return nil, err
		}
		appliedChanges = append(appliedChanges, changes...)
		version = updatedWorld.Metadata.Version
	}

	if len(viewUpdates) > 0 {
		updatedView, changes, err := r.manager.UpdatePlayerView(experienceID, playerID, func(v *worldstate.View) (*worldstate.View, []worldstate.WorldChange, error) {
			for _, change := range viewUpdates {
				if err := applyChange(v, change); err != nil {
					return nil, nil, err
				}
			}
			v.Session.LastActive = time.Now()
			v.Session.TurnsTaken++
			return v, viewUpdates, nil
		})
		if err != nil {
			return nil, err
		}
		appliedChanges = append(appliedChanges, changes...)
		if version == 0 {
			version = updatedView.Metadata.Version
		}
	}

	narrative := resp.Narrative
	if narrative == "" {
		narrative = r.narrateOrEmpty(ctx, cmd, userPrompt, appliedChanges)
	}

	return &Result{
		Success:          true,
		Narrative:        narrative,
		StateUpdates:     appliedChanges,
		AvailableActions: resp.AvailableActions,
		Metadata:         resp.Metadata,
		Version:          version,
	}, nil
}

// narrateOrEmpty makes the optional second, prose-only call (no sampling temperature is set)
// when the structured call returned no narrative of its own.
// A failure here is not fatal to the command: the state change already
// succeeded, so the player simply gets a terse fallback line.
func (r *Runner) narrateOrEmpty(ctx context.Context, cmd *commands.CommandRecord, userPrompt string, changes []worldstate.WorldChange) string {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return "Done."
	}
	prose, err := r.llm.CompleteText(ctx, llm.TextCompletionRequest{
		SystemPrompt: "Narrate the result of this game action in two sentences or fewer, in second person.",
		UserPrompt:   fmt.Sprintf("%s\n\nAPPLIED CHANGES:\n%s", userPrompt, changesJSON),
		MaxTokens:    maxNarrativeTokens,
	})
	if err != nil {
		r.logger.Warn("narrative completion failed", "command", cmd.Command, "error", err)
		return "Done."
	}
	return strings.TrimSpace(prose)
}

func (r *Runner) logCompletion(world *worldstate.World, userInput, systemPrompt, response string, elapsed time.Duration, callErr error) {
	if r.completer == nil {
		return
	}
	meta := logging.CompletionMetadata{
		Model:        "gpt-5-2025-08-07",
		MaxTokens:    maxStructuredTokens,
		ResponseTime: elapsed,
	}
	if callErr != nil {
		msg := callErr.Error()
		meta.Error = &msg
	}
	if err := r.completer.LogCompletion(world, userInput, systemPrompt, response, meta); err != nil {
		r.logger.Warn("completion log write failed", "error", err)
	}
}

// splitByTarget routes a state_updates list to the world document or the
// player's own view document, based on the path's leading segment.
func splitByTarget(updates []worldstate.WorldChange) (world, view []worldstate.WorldChange) {
	for _, u := range updates {
		head := u.Path
		if idx := strings.Index(u.Path, "."); idx >= 0 {
			head = u.Path[:idx]
		}
		switch head {
		case "player", "progress", "session":
			view = append(view, u)
		default:
			world = append(world, u)
		}
	}
	return world, view
}

// validateUpdates dry-runs every update against an in-memory clone of the
// current world and view so a single invalid entry fails the whole command
// before any document is actually written, keeping state consistent.
func validateUpdates(world *worldstate.World, view *worldstate.View, worldUpdates, viewUpdates []worldstate.WorldChange) error {
	if len(worldUpdates) > 0 {
		clone, err := cloneWorld(world)
		if err != nil {
			return err
		}
		for _, change := range worldUpdates {
			if err := applyChange(clone, change); err != nil {
				return toInvalidStateUpdate(change, err)
			}
		}
	}
	if len(viewUpdates) > 0 {
		clone, err := cloneView(view)
		if err != nil {
			return err
		}
		for _, change := range viewUpdates {
			if err := applyChange(clone, change); err != nil {
				return toInvalidStateUpdate(change, err)
			}
		}
	}
	return nil
}

func toInvalidStateUpdate(change worldstate.WorldChange, err error) error {
	if apperr.KindOf(err) == apperr.PermissionDenied {
		return err
	}
	return apperr.Wrap(apperr.InvalidStateUpdate, fmt.Sprintf("state update at %q rejected", change.Path), err)
}

func cloneWorld(w *worldstate.World) (*worldstate.World, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidStateUpdate, "cloning world for validation", err)
	}
	var clone worldstate.World
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, apperr.Wrap(apperr.InvalidStateUpdate, "cloning world for validation", err)
	}
	return &clone, nil
}

func cloneView(v *worldstate.View) (*worldstate.View, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidStateUpdate, "cloning view for validation", err)
	}
	var clone worldstate.View
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, apperr.Wrap(apperr.InvalidStateUpdate, "cloning view for validation", err)
	}
	return &clone, nil
}

// applyChange dispatches one WorldChange onto target (a *worldstate.World
// or *worldstate.View) via pathresolver, per its operation marker.
func applyChange(target any, change worldstate.WorldChange) error {
	switch change.Operation {
	case worldstate.OpSet:
		return pathresolver.Set(target, change.Path, change.Value)
	case worldstate.OpAppend:
		return pathresolver.Append(target, change.Path, change.Item)
	case worldstate.OpRemove:
		return pathresolver.Remove(target, change.Path, change.ItemID)
	default:
		return apperr.New(apperr.InvalidStateUpdate, fmt.Sprintf("unknown operation %q", change.Operation))
	}
}
