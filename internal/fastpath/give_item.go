package fastpath

import (
	"context"
	"fmt"
	"time"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// GiveItemHandler implements give_item {instance_id, target_npc_id}.
type GiveItemHandler struct{}

func (h *GiveItemHandler) Name() string { return "give_item" }

func (h *GiveItemHandler) Execute(ctx context.Context, mgr *worldstate.Manager, req Request) (*Result, error) {
	instanceID, err := stringArg(req.Args, "instance_id")
	if err != nil {
		return nil, err
	}
	npcID, err := stringArg(req.Args, "target_npc_id")
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

	var giftResult *worldstate.GiftResult
	updatedWorld, worldChanges, err := mgr.UpdateWorldState(req.ExperienceID, req.PlayerID, func(w *worldstate.World) (*worldstate.World, []worldstate.WorldChange, error) {
		npc, err := w.FindNPC(npcID)
		if err != nil {
			return nil, nil, err
		}
		if npc.Location != view.Player.CurrentLocation || (npc.Area != "" && npc.Area != view.Player.CurrentArea) {
			return nil, nil, apperr.New(apperr.NotAtNpc, "npc is not at your current position")
		}
		giftResult = worldstate.EvaluateGiftHook(npc, w, snap.TemplateID)
		change := worldstate.WorldChange{Path: fmt.Sprintf("npcs.%s.state", npcID), Operation: worldstate.OpSet, Value: npc.State}
		return w, []worldstate.WorldChange{change}, nil
	})
	if err != nil {
		return nil, err
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

	message := fmt.Sprintf("Gave %s to %s.", snap.SemanticName, npcID)
	if giftResult.DialogueText != "" {
		message = giftResult.DialogueText
	}

	return &Result{
		Success: true,
		Message: message,
		Metadata: map[string]any{
			"hook_result": giftResult,
		},
		Changes: append(worldChanges, viewChanges...),
		Version: updatedWorld.Metadata.Version,
	}, nil
}
