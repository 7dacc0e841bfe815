package fastpath

import (
	"context"
	"fmt"
	"time"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// CollectItemHandler implements collect_item {instance_id}.
type CollectItemHandler struct{}

func (h *CollectItemHandler) Name() string { return "collect_item" }

func (h *CollectItemHandler) Execute(ctx context.Context, mgr *worldstate.Manager, req Request) (*Result, error) {
	instanceID, err := stringArg(req.Args, "instance_id")
	if err != nil {
		return nil, err
	}

	view, err := mgr.GetPlayerView(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}
	loc, area, spot := view.Player.CurrentLocation, view.Player.CurrentArea, view.Player.CurrentSublocation

	world, err := mgr.GetWorldState(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}
	candidate, err := world.FindItemAtPosition(loc, area, spot, instanceID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			for _, it := range view.Player.Inventory {
				if it.InstanceID == instanceID {
					return nil, apperr.New(apperr.AlreadyCollected, "item was already collected")
				}
			}
		}
		return nil, err
	}
	if !candidate.Collectible {
		return nil, apperr.New(apperr.NotCollectible, "item is not collectible")
	}
	if !candidate.Visible && !req.Admin {
		return nil, apperr.New(apperr.NotCollectible, "item is not visible")
	}

	var removed *worldstate.ItemInstance
	updatedWorld, worldChanges, err := mgr.UpdateWorldState(req.ExperienceID, req.PlayerID, func(w *worldstate.World) (*worldstate.World, []worldstate.WorldChange, error) {
		item, err := w.RemoveItemAtPosition(loc, area, spot, instanceID)
		if err != nil {
			return nil, nil, apperr.New(apperr.AlreadyCollected, "item was already collected")
		}
		if !item.Collectible {
			return nil, nil, apperr.New(apperr.NotCollectible, "item is not collectible")
		}
		removed = item
		change := worldstate.WorldChange{Path: itemsPath(loc, area, spot), Operation: worldstate.OpRemove, ItemID: instanceID}
		return w, []worldstate.WorldChange{change}, nil
	})
	if err != nil {
		return nil, err
	}

	_, viewChanges, err := mgr.UpdatePlayerView(req.ExperienceID, req.PlayerID, func(v *worldstate.View) (*worldstate.View, []worldstate.WorldChange, error) {
		snap := &worldstate.ItemSnapshot{
			InstanceID:   removed.InstanceID,
			TemplateID:   removed.TemplateID,
			SemanticName: removed.SemanticName,
			Instance:     removed,
		}
		v.Player.Inventory = append(v.Player.Inventory, snap)
		v.Session.LastActive = time.Now()
		v.Session.TurnsTaken++
		change := worldstate.WorldChange{Path: "player.inventory", Operation: worldstate.OpAppend, Item: snap}
		return v, []worldstate.WorldChange{change}, nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Collected %s.", removed.SemanticName),
		Changes: append(worldChanges, viewChanges...),
		Version: updatedWorld.Metadata.Version,
	}, nil
}

func itemsPath(locationID, areaID, spotID string) string {
	if spotID != "" {
		return fmt.Sprintf("locations.%s.areas.%s.spots.%s.items", locationID, areaID, spotID)
	}
	return fmt.Sprintf("locations.%s.areas.%s.items", locationID, areaID)
}
