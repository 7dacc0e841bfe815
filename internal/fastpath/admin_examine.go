package fastpath

import (
	"context"
	"fmt"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/pathresolver"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// AdminExamineHandler implements @examine {object_type, object_id}.
// Read-only: it never writes and never emits a WorldUpdate.
type AdminExamineHandler struct{}

func (h *AdminExamineHandler) Name() string { return "@examine" }

func (h *AdminExamineHandler) Execute(ctx context.Context, mgr *worldstate.Manager, req Request) (*Result, error) {
	if !req.Admin {
		return nil, apperr.New(apperr.PermissionDenied, "@examine requires an admin session")
	}
	objectType, err := stringArg(req.Args, "object_type")
	if err != nil {
		return nil, err
	}
	objectID, err := stringArg(req.Args, "object_id")
	if err != nil {
		return nil, err
	}

	world, err := mgr.GetWorldState(req.ExperienceID, req.PlayerID)
	if err != nil {
		return nil, err
	}
	target, err := resolveObject(world, objectType, objectID)
	if err != nil {
		return nil, err
	}
	properties, err := pathresolver.Discover(target)
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("%s %s.", objectType, objectID),
		Metadata: map[string]any{
			"object_type": objectType,
			"object_id":   objectID,
			"object":      target,
			"properties":  properties,
		},
	}, nil
}
