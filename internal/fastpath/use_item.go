package fastpath

import (
	"context"
	"fmt"
	"time"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/pathresolver"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// UseItemHandler implements use_item {instance_id}.
type UseItemHandler struct{}

func (h *UseItemHandler) Name() string { return "use_item" }

func (h *UseItemHandler) Execute(ctx context.Context, mgr *worldstate.Manager, req Request) (*Result, error) {
	instanceID, err := stringArg(req.Args, "instance_id")
	if err != nil {
		return nil, err
	}

	view, err := mgr.GetPlayerView(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}
	var snap *worldstate.ItemSnapshot
	for _, it := range view.Player.Inventory {
		if it.InstanceID == instanceID {
			snap = it
			break
		}
	}
	if snap == nil {
		return nil, apperr.New(apperr.NotInInventory, "item is not in inventory")
	}

	world, err := mgr.GetWorldState(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}
	tmpl, ok := world.TemplateFor(snap.TemplateID)
	if !ok || len(tmpl.Effects) == 0 {
		return nil, apperr.New(apperr.NotUsable, "item has no usable effects")
	}

	updatedView, viewChanges, err := mgr.UpdatePlayerView(req.ExperienceID, req.PlayerID, func(v *worldstate.View) (*worldstate.View, []worldstate.WorldChange, error) {
		found := -1
		for i, it := range v.Player.Inventory {
			if it.InstanceID == instanceID {
				found = i
				break
			}
		}
		if found == -1 {
			return nil, nil, apperr.New(apperr.NotInInventory, "item is not in inventory")
		}

		changes, err := applyEffects(v, tmpl.Effects)
		if err != nil {
			return nil, nil, err
		}

		if tmpl.Consumable {
			v.Player.Inventory = append(v.Player.Inventory[:found], v.Player.Inventory[found+1:]...)
			changes = append(changes, worldstate.WorldChange{Path: "player.inventory", Operation: worldstate.OpRemove, ItemID: instanceID})
		}
		v.Session.LastActive = time.Now()
		v.Session.TurnsTaken++
		return v, changes, nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Used %s.", snap.SemanticName),
		Changes: viewChanges,
		Version: updatedView.Metadata.Version,
	}, nil
}

// applyEffects applies the recognized effect keys to a view in place and
// returns the change entries produced. The set/unset effect paths are
// dotted view paths ("progress.quest_states.intro"), resolved through the
// same path resolver the markdown runner applies state_updates with, so a
// declared effect can reach any part of the view, not just the stats map.
func applyEffects(v *worldstate.View, effects map[string]any) ([]worldstate.WorldChange, error) {
	if v.Player.Stats == nil {
		v.Player.Stats = map[string]any{}
	}
	var changes []worldstate.WorldChange

	if raw, ok := effects["restore_health"]; ok {
		n := asFloat(raw)
		current := asFloat(v.Player.Stats["health"])
		maxHealth := asFloat(v.Player.Stats["max_health"])
		if maxHealth == 0 {
			maxHealth = 100
		}
		newHealth := current + n
		if newHealth > maxHealth {
			newHealth = maxHealth
		}
		v.Player.Stats["health"] = newHealth
		changes = append(changes, worldstate.WorldChange{Path: "player.stats.health", Operation: worldstate.OpSet, Value: newHealth})
	}

	if raw, ok := effects["apply_status"].(map[string]any); ok {
		name, _ := raw["name"].(string)
		duration := raw["duration"]
		if name != "" {
			status, _ := v.Player.Stats["status"].(map[string]any)
			if status == nil {
				status = map[string]any{}
			}
			status[name] = duration
			v.Player.Stats["status"] = status
			changes = append(changes, worldstate.WorldChange{Path: "player.stats.status." + name, Operation: worldstate.OpSet, Value: duration})
		}
	}

	if raw, ok := effects["set"].(map[string]any); ok {
		path, _ := raw["path"].(string)
		if path != "" {
			if err := pathresolver.Set(v, path, raw["value"]); err != nil {
				return nil, err
			}
			changes = append(changes, worldstate.WorldChange{Path: path, Operation: worldstate.OpSet, Value: raw["value"]})
		}
	}

	if raw, ok := effects["unset"].(map[string]any); ok {
		path, _ := raw["path"].(string)
		if path != "" {
			if err := pathresolver.Unset(v, path); err != nil {
				return nil, err
			}
			changes = append(changes, worldstate.WorldChange{Path: path, Operation: worldstate.OpRemove})
		}
	}

	return changes, nil
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
