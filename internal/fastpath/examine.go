package fastpath

import (
	"context"
	"fmt"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// ExamineHandler implements examine {instance_id}. Read-only: it
// must never write and must never emit a WorldUpdate.
type ExamineHandler struct{}

func (h *ExamineHandler) Name() string { return "examine" }

func (h *ExamineHandler) Execute(ctx context.Context, mgr *worldstate.Manager, req Request) (*Result, error) {
	instanceID, err := stringArg(req.Args, "instance_id")
	if err != nil {
		return nil, err
	}

	view, err := mgr.GetPlayerView(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}
	world, err := mgr.GetWorldState(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}

	for _, it := range view.Player.Inventory {
		if it.InstanceID == instanceID {
			tmpl, _ := world.TemplateFor(it.TemplateID)
			return describeItem(it.SemanticName, tmpl), nil
		}
	}

	item, err := world.FindItemAtPosition(view.Player.CurrentLocation, view.Player.CurrentArea, view.Player.CurrentSublocation, instanceID)
	if err != nil {
		return nil, apperr.New(apperr.NotFound, "no such item here or in your inventory")
	}
	tmpl, _ := world.TemplateFor(item.TemplateID)
	return describeItem(item.SemanticName, tmpl), nil
}

func describeItem(name string, tmpl *worldstate.ItemTemplate) *Result {
	metadata := map[string]any{"semantic_name": name}
	consumable := false
	collectible := false
	var effects map[string]any
	if tmpl != nil {
		consumable = tmpl.Consumable
		collectible = tmpl.Collectible
		effects = tmpl.Effects
	}
	metadata["consumable"] = consumable
	metadata["collectible"] = collectible
	if len(effects) > 0 {
		metadata["effects"] = effects
	}
	return &Result{
		Success:  true,
		Message:  fmt.Sprintf("%s.", name),
		Metadata: metadata,
	}
}
