package fastpath

import (
	"context"
	"fmt"
	"time"

	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// GoHandler implements go {destination}.
type GoHandler struct{}

func (h *GoHandler) Name() string { return "go" }

func (h *GoHandler) Execute(ctx context.Context, mgr *worldstate.Manager, req Request) (*Result, error) {
	destination, err := stringArg(req.Args, "destination")
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
	newLoc, newArea, newSpot, err := world.ResolveDestination(view.Player.CurrentLocation, view.Player.CurrentArea, destination)
	if err != nil {
		return nil, err
	}

	updatedView, viewChanges, err := mgr.UpdatePlayerView(req.ExperienceID, req.PlayerID, func(v *worldstate.View) (*worldstate.View, []worldstate.WorldChange, error) {
		v.Player.CurrentLocation = newLoc
		v.Player.CurrentArea = newArea
		v.Player.CurrentSublocation = newSpot
		if !containsStr(v.Progress.VisitedLocations, newLoc) {
			v.Progress.VisitedLocations = append(v.Progress.VisitedLocations, newLoc)
		}
		v.Session.LastActive = time.Now()
		v.Session.TurnsTaken++

		changes := []worldstate.WorldChange{
			{Path: "player.current_location", Operation: worldstate.OpSet, Value: newLoc},
			{Path: "player.current_area", Operation: worldstate.OpSet, Value: newArea},
			{Path: "player.current_sublocation", Operation: worldstate.OpSet, Value: newSpot},
		}
		return v, changes, nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Moved to %s.", destination),
		Changes: viewChanges,
		Version: updatedView.Metadata.Version,
	}, nil
}

func containsStr(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
