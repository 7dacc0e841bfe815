package fastpath

import (
	"context"
	"fmt"
	"time"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// DropItemHandler implements drop_item {instance_id}.
type DropItemHandler struct{}

func (h *DropItemHandler) Name() string { return "drop_item" }

func (h *DropItemHandler) Execute(ctx context.Context, mgr *worldstate.Manager, req Request) (*Result, error) {
	instanceID, err := stringArg(req.Args, "instance_id")
	if err != nil {
		return nil, err
	}

	view, err := mgr.GetPlayerView(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, it := range view.Player.Inventory {
		if it.InstanceID == instanceID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, apperr.New(apperr.NotInInventory, "item is not in inventory")
	}
	dropped := view.Player.Inventory[idx]
	loc, area, spot := view.Player.CurrentLocation, view.Player.CurrentArea, view.Player.CurrentSublocation

	world, err := mgr.GetWorldState(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}
	// Put back the instance exactly as it was collected. An item that never
	// lived in a world (bootstrap starting inventory) is reconstituted from
	// its template instead of invented with defaulted flags.
	instance := dropped.Instance
	if instance == nil {
		instance = &worldstate.ItemInstance{
			InstanceID:   dropped.InstanceID,
			TemplateID:   dropped.TemplateID,
			SemanticName: dropped.SemanticName,
			Visible:      true,
		}
		if tmpl, ok := world.TemplateFor(dropped.TemplateID); ok {
			instance.Collectible = tmpl.Collectible
			instance.Consumable = tmpl.Consumable
			instance.Effects = tmpl.Effects
		} else {
			instance.Collectible = true
		}
	}

	_, viewChanges, err := mgr.UpdatePlayerView(req.ExperienceID, req.PlayerID, func(v *worldstate.View) (*worldstate.View, []worldstate.WorldChange, error) {
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
		v.Player.Inventory = append(v.Player.Inventory[:found], v.Player.Inventory[found+1:]...)
		v.Session.LastActive = time.Now()
		v.Session.TurnsTaken++
		change := worldstate.WorldChange{Path: "player.inventory", Operation: worldstate.OpRemove, ItemID: instanceID}
		return v, []worldstate.WorldChange{change}, nil
	})
	if err != nil {
		return nil, err
	}

	updatedWorld, worldChanges, err := mgr.UpdateWorldState(req.ExperienceID, req.PlayerID, func(w *worldstate.World) (*worldstate.World, []worldstate.WorldChange, error) {
		if err := w.AddItemAtPosition(loc, area, spot, instance); err != nil {
			return nil, nil, err
		}
		change := worldstate.WorldChange{Path: itemsPath(loc, area, spot), Operation: worldstate.OpAppend, Item: instance}
		return w, []worldstate.WorldChange{change}, nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Dropped %s.", dropped.SemanticName),
		Changes: append(viewChanges, worldChanges...),
		Version: updatedWorld.Metadata.Version,
	}, nil
}
