package fastpath

import (
	"context"
	"sort"

	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// InventoryHandler implements inventory. Read-only.
type InventoryHandler struct{}

func (h *InventoryHandler) Name() string { return "inventory" }

type inventoryGroup struct {
	TemplateID string `json:"template_id"`
	Count      int    `json:"count"`
	Effects    map[string]any `json:"effects,omitempty"`
}

func (h *InventoryHandler) Execute(ctx context.Context, mgr *worldstate.Manager, req Request) (*Result, error) {
	view, err := mgr.GetPlayerView(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}
	world, err := mgr.GetWorldState(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	var order []string
	for _, it := range view.Player.Inventory {
		if counts[it.TemplateID] == 0 {
			order = append(order, it.TemplateID)
		}
		counts[it.TemplateID]++
	}
	sort.Strings(order)

	groups := make([]inventoryGroup, 0, len(order))
	for _, templateID := range order {
		var effects map[string]any
		if tmpl, ok := world.TemplateFor(templateID); ok {
			effects = tmpl.Effects
		}
		groups = append(groups, inventoryGroup{TemplateID: templateID, Count: counts[templateID], Effects: effects})
	}

	return &Result{
		Success:  true,
		Message:  "Inventory listed.",
		Metadata: map[string]any{"items": groups},
	}, nil
}
