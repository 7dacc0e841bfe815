package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/broadcast"
	"github.com/aeonia-ai/gaia-runtime/internal/commands"
	"github.com/aeonia-ai/gaia-runtime/internal/config"
	"github.com/aeonia-ai/gaia-runtime/internal/fastpath"
	"github.com/aeonia-ai/gaia-runtime/internal/history"
	"github.com/aeonia-ai/gaia-runtime/internal/logging"
	"github.com/aeonia-ai/gaia-runtime/internal/markdownrunner"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// DispatchResult is the normalized outcome of one action, independent of
// whether it went through the fast path or the markdown runner; the
// gateway's WebSocket and HTTP surfaces each render it to their own wire
// shape.
type DispatchResult struct {
	Success          bool
	Message          string
	Metadata         map[string]any
	AvailableActions []string
	Changes          []worldstate.WorldChange
}

// Dispatcher routes each action in a fixed order: admin actions
// (@-prefixed), then reserved structured actions, then the command
// registry into the markdown runner, else UnknownCommand.
type Dispatcher struct {
	manager     *worldstate.Manager
	commands    *commands.Registry
	runner      *markdownrunner.Runner
	broadcaster broadcast.Broadcaster
	logger      *slog.Logger
}

// NewDispatcher wires a Dispatcher over the runtime's shared collaborators.
func NewDispatcher(manager *worldstate.Manager, registry *commands.Registry, runner *markdownrunner.Runner, broadcaster broadcast.Broadcaster, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		manager:     manager,
		commands:    registry,
		runner:      runner,
		broadcaster: broadcaster,
		logger:      logging.WithComponent(logger, "gateway"),
	}
}

// Dispatch routes and executes one action on behalf of (experienceID,
// playerID), broadcasting any resulting changes before returning.
func (d *Dispatcher) Dispatch(ctx context.Context, experienceID, playerID string, admin bool, action string, payload map[string]any, rawMessage string, hist *history.History) (*DispatchResult, error) {
	if h, ok := fastpath.Get(action); ok {
		if strings.HasPrefix(action, "@") && !admin {
			return nil, apperr.New(apperr.PermissionDenied, fmt.Sprintf("%q requires an admin session", action))
		}
		res, err := h.Execute(ctx, d.manager, fastpath.Request{
			ExperienceID: experienceID,
			PlayerID:     playerID,
			Admin:        admin,
			Args:         payload,
		})
		if err != nil {
			return nil, err
		}
		d.broadcastChanges(experienceID, playerID, res.Changes, res.Version, playerID)
		return &DispatchResult{Success: res.Success, Message: res.Message, Metadata: res.Metadata, Changes: res.Changes}, nil
	}

	if strings.HasPrefix(action, "@") {
		return nil, apperr.New(apperr.UnknownCommand, fmt.Sprintf("no admin command matches %q", action))
	}

	cmd, err := d.commands.Resolve(experienceID, action)
	if err != nil && apperr.Is(err, apperr.UnknownCommand) && rawMessage != "" {
		// A natural-language invocation rarely leads with its command
		// name; scan the whole message for a registered name or alias
		// before giving up.
		cmd, err = d.commands.ResolveMessage(experienceID, rawMessage)
	}
	if err != nil {
		return nil, err
	}
	if cmd.RequiresAdmin && !admin {
		return nil, apperr.New(apperr.PermissionDenied, fmt.Sprintf("%q requires an admin session", action))
	}
	cfg, err := d.manager.LoadConfig(experienceID)
	if err != nil {
		return nil, err
	}
	if !cmd.SupportsModel(string(cfg.State.Model)) {
		return nil, apperr.New(apperr.ConfigInvalid, fmt.Sprintf("%q does not support the %q state model", action, cfg.State.Model))
	}

	result, err := d.runner.Run(ctx, experienceID, playerID, cmd, rawMessage, hist)
	if err != nil {
		return nil, err
	}
	d.broadcastChanges(experienceID, playerID, result.StateUpdates, result.Version, playerID)
	return &DispatchResult{
		Success:          result.Success,
		Message:          result.Narrative,
		Metadata:         result.Metadata,
		AvailableActions: result.AvailableActions,
		Changes:          result.StateUpdates,
	}, nil
}

// isViewScoped reports whether a state_updates/Changes path targets the
// player's private view document rather than the shared/isolated world
// document.
func isViewScoped(path string) bool {
	head := path
	if idx := strings.Index(path, "."); idx >= 0 {
		head = path[:idx]
	}
	return head == "player" || head == "progress" || head == "session"
}

// broadcastChanges publishes a successful mutation's full diff as exactly
// one WorldUpdate, regardless of whether the diff mixes
// world-scoped and view-scoped changes. For a shared experience the single
// update goes to the experience-wide subject, so every subscriber —
// including the acting player's own connection — sees view-scoped changes
// like a `go` destination update or an inventory gain, not just world
// state. For an isolated experience it goes to the acting player's own
// subject, since both the view and the isolated world are per-player
// documents there. A failure to publish is logged, not returned: a dropped
// broadcast never unwinds an already-committed write.
func (d *Dispatcher) broadcastChanges(experienceID, playerID string, changes []worldstate.WorldChange, version int, originPlayer string) {
	if len(changes) == 0 || d.broadcaster == nil {
		return
	}
	cfg, err := d.manager.LoadConfig(experienceID)
	if err != nil {
		d.logger.Warn("broadcast: loading config failed", "error", err)
		return
	}

	// Handlers stamp the post-write version of whichever document their
	// diff touched; a handler that didn't (version 0) falls back to a
	// fresh read, which can race a concurrent writer.
	if version == 0 {
		version, err = d.diffVersion(experienceID, playerID, changes)
		if err != nil {
			d.logger.Warn("broadcast: reading version failed", "error", err)
			return
		}
	}

	subject := broadcast.PlayerSubject(experienceID, playerID)
	if cfg.State.Model == config.ModelShared {
		subject = broadcast.ExperienceSubject(experienceID)
	}

	update := &broadcast.WorldUpdate{Experience: experienceID, Version: version, Changes: changes, OriginPlayer: originPlayer, Timestamp: time.Now()}
	if err := d.broadcaster.Publish(subject, update); err != nil {
		d.logger.Warn("broadcast publish failed", "error", err)
	}
}

// diffVersion reports the version to stamp a WorldUpdate with: the world's
// version if the diff touches any world-scoped path, else the view's.
func (d *Dispatcher) diffVersion(experienceID, playerID string, changes []worldstate.WorldChange) (int, error) {
	for _, c := range changes {
		if !isViewScoped(c.Path) {
			world, err := d.manager.GetWorldState(experienceID, playerID)
			if err != nil {
				return 0, err
			}
			return world.Metadata.Version, nil
		}
	}
	view, err := d.manager.GetPlayerView(experienceID, playerID)
	if err != nil {
		return 0, err
	}
	return view.Metadata.Version, nil
}
