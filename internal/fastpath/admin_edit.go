package fastpath

import (
	"context"
	"fmt"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/pathresolver"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// AdminEditHandler implements @edit {object_type, object_id, path,
// value}. Admin-only; operates on the live world document under the normal
// optimistic-versioning write path, so an edit competes for the version
// exactly like any player mutation.
type AdminEditHandler struct{}

func (h *AdminEditHandler) Name() string { return "@edit" }

func (h *AdminEditHandler) Execute(ctx context.Context, mgr *worldstate.Manager, req Request) (*Result, error) {
	if !req.Admin {
		return nil, apperr.New(apperr.PermissionDenied, "@edit requires an admin session")
	}
	objectType, err := stringArg(req.Args, "object_type")
	if err != nil {
		return nil, err
	}
	objectID, err := stringArg(req.Args, "object_id")
	if err != nil {
		return nil, err
	}
	propertyPath, err := stringArg(req.Args, "path")
	if err != nil {
		return nil, err
	}
	rawValue, err := stringArg(req.Args, "value")
	if err != nil {
		return nil, err
	}
	value := pathresolver.InferValue(rawValue)

	updatedWorld, changes, err := mgr.UpdateWorldState(req.ExperienceID, req.PlayerID, func(w *worldstate.World) (*worldstate.World, []worldstate.WorldChange, error) {
		target, err := resolveObject(w, objectType, objectID)
		if err != nil {
			return nil, nil, err
		}
		if err := pathresolver.Set(target, propertyPath, value); err != nil {
			return nil, nil, err
		}
		change := worldstate.WorldChange{
			Path:      fmt.Sprintf("%s.%s.%s", objectType, objectID, propertyPath),
			Operation: worldstate.OpSet,
			Value:     value,
		}
		return w, []worldstate.WorldChange{change}, nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Set %s.%s on %s %s.", propertyPath, fmt.Sprint(value), objectType, objectID),
		Changes: changes,
		Version: updatedWorld.Metadata.Version,
	}, nil
}

// resolveObject maps a (object_type, object_id) pair from an admin command
// onto the live Go value it names, so pathresolver can operate on it. This
// is the one place that understands the world tree's object taxonomy;
// pathresolver itself is agnostic to what kind of object it edits.
func resolveObject(w *worldstate.World, objectType, objectID string) (any, error) {
	switch objectType {
	case "npc":
		return w.FindNPC(objectID)
	case "item":
		return w.FindItemAnywhere(objectID)
	case "location":
		loc, ok := w.Locations[objectID]
		if !ok {
			return nil, apperr.New(apperr.NotFound, "unknown location "+objectID)
		}
		return loc, nil
	case "area":
		for _, loc := range w.Locations {
			if area, ok := loc.Areas[objectID]; ok {
				return area, nil
			}
		}
		return nil, apperr.New(apperr.NotFound, "unknown area "+objectID)
	case "spot":
		for _, loc := range w.Locations {
			for _, area := range loc.Areas {
				if spot, ok := area.Spots[objectID]; ok {
					return spot, nil
				}
			}
		}
		return nil, apperr.New(apperr.NotFound, "unknown spot "+objectID)
	default:
		return nil, apperr.New(apperr.MalformedInput, "unsupported object_type "+objectType)
	}
}
