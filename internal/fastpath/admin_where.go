package fastpath

import (
	"context"
	"fmt"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// AdminWhereHandler implements @where. It reports the admin's current
// location and area, every item in the area (including hidden and
// non-collectible ones, unlike the player-facing examine/inventory
// handlers), and every other area of the current location (connects_to is not
// consulted). Read-only.
type AdminWhereHandler struct{}

func (h *AdminWhereHandler) Name() string { return "@where" }

func (h *AdminWhereHandler) Execute(ctx context.Context, mgr *worldstate.Manager, req Request) (*Result, error) {
	if !req.Admin {
		return nil, apperr.New(apperr.PermissionDenied, "@where requires an admin session")
	}

	view, err := mgr.GetPlayerView(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}
	world, err := mgr.GetWorldState(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}

	loc, ok := world.Locations[view.Player.CurrentLocation]
	if !ok {
		return nil, apperr.New(apperr.NotAtLocation, "current location no longer exists")
	}
	area, ok := loc.Areas[view.Player.CurrentArea]
	if !ok {
		return nil, apperr.New(apperr.NotAtLocation, "current area no longer exists")
	}

	items := append([]*worldstate.ItemInstance{}, area.Items...)
	for _, spot := range area.Spots {
		items = append(items, spot.Items...)
	}

	var siblings []string
	for id := range loc.Areas {
		if id != view.Player.CurrentArea {
			siblings = append(siblings, id)
		}
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("%s / %s", view.Player.CurrentLocation, view.Player.CurrentArea),
		Metadata: map[string]any{
			"location":      view.Player.CurrentLocation,
			"area":          view.Player.CurrentArea,
			"sublocation":   view.Player.CurrentSublocation,
			"items":         items,
			"sibling_areas": siblings,
		},
	}, nil
}
