package worldstate

import "github.com/aeonia-ai/gaia-runtime/internal/apperr"

// locationOf resolves a location by id, or apperr.NotAtLocation if absent.
func (w *World) locationOf(locationID string) (*Location, error) {
	loc, ok := w.Locations[locationID]
	if !ok {
		return nil, apperr.New(apperr.NotAtLocation, "unknown location "+locationID)
	}
	return loc, nil
}

func (loc *Location) areaOf(areaID string) (*Area, error) {
	if areaID == "" {
		return nil, apperr.New(apperr.NotAtLocation, "no area specified")
	}
	area, ok := loc.Areas[areaID]
	if !ok {
		return nil, apperr.New(apperr.NotAtLocation, "unknown area "+areaID)
	}
	return area, nil
}

// itemSlot points at a specific items slice (spot-level or area-level)
// within the world tree, so callers can both read and remove in place.
type itemSlot struct {
	items *[]*ItemInstance
}

func (w *World) resolveItemSlot(locationID, areaID, spotID string) (*itemSlot, error) {
	loc, err := w.locationOf(locationID)
	if err != nil {
		return nil, err
	}
	area, err := loc.areaOf(areaID)
	if err != nil {
		return nil, err
	}
	if spotID != "" {
		if area.Spots == nil {
			return nil, apperr.New(apperr.NotAtLocation, "unknown spot "+spotID)
		}
		spot, ok := area.Spots[spotID]
		if !ok {
			return nil, apperr.New(apperr.NotAtLocation, "unknown spot "+spotID)
		}
		return &itemSlot{items: &spot.Items}, nil
	}
	return &itemSlot{items: &area.Items}, nil
}

// FindItemAtPosition looks for instanceID among the items at
// (locationID, areaID, spotID) and returns it without mutating the world.
func (w *World) FindItemAtPosition(locationID, areaID, spotID, instanceID string) (*ItemInstance, error) {
	slot, err := w.resolveItemSlot(locationID, areaID, spotID)
	if err != nil {
		return nil, err
	}
	for _, it := range *slot.items {
		if it.InstanceID == instanceID {
			return it, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "item "+instanceID+" not found at that position")
}

// RemoveItemAtPosition removes and returns instanceID from
// (locationID, areaID, spotID).
func (w *World) RemoveItemAtPosition(locationID, areaID, spotID, instanceID string) (*ItemInstance, error) {
	slot, err := w.resolveItemSlot(locationID, areaID, spotID)
	if err != nil {
		return nil, err
	}
	for i, it := range *slot.items {
		if it.InstanceID == instanceID {
			*slot.items = append((*slot.items)[:i], (*slot.items)[i+1:]...)
			return it, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "item "+instanceID+" not found at that position")
}

// AddItemAtPosition appends item to (locationID, areaID, spotID), creating
// the area's item/spot slice if necessary.
func (w *World) AddItemAtPosition(locationID, areaID, spotID string, item *ItemInstance) error {
	loc, err := w.locationOf(locationID)
	if err != nil {
		return err
	}
	area, err := loc.areaOf(areaID)
	if err != nil {
		return err
	}
	if spotID != "" {
		if area.Spots == nil {
			area.Spots = make(map[string]*Spot)
		}
		spot, ok := area.Spots[spotID]
		if !ok {
			spot = &Spot{}
			area.Spots[spotID] = spot
		}
		spot.Items = append(spot.Items, item)
		return nil
	}
	area.Items = append(area.Items, item)
	return nil
}

// FindItemAnywhere searches every location/area/spot for instanceID,
// regardless of the caller's current position. Used by admin operations,
// which are not scoped to a single player's viewpoint.
func (w *World) FindItemAnywhere(instanceID string) (*ItemInstance, error) {
	for _, loc := range w.Locations {
		for _, area := range loc.Areas {
			for _, it := range area.Items {
				if it.InstanceID == instanceID {
					return it, nil
				}
			}
			for _, spot := range area.Spots {
				for _, it := range spot.Items {
					if it.InstanceID == instanceID {
						return it, nil
					}
				}
			}
		}
	}
	return nil, apperr.New(apperr.NotFound, "item "+instanceID+" not found anywhere in the world")
}

// FindNPC returns an NPC by id, or apperr.NpcNotFound.
func (w *World) FindNPC(npcID string) (*NPC, error) {
	npc, ok := w.NPCs[npcID]
	if !ok {
		return nil, apperr.New(apperr.NpcNotFound, "unknown npc "+npcID)
	}
	return npc, nil
}

// ResolveDestination implements the `go` fast-path's resolution order:
// current-location spots, then current-location areas, then sibling
// locations reachable via an explicit exit. It returns the resolved
// (locationID, areaID, spotID) triple for the new position.
func (w *World) ResolveDestination(currentLocation, currentArea, destination string) (locationID, areaID, spotID string, err error) {
	loc, ok := w.Locations[currentLocation]
	if !ok {
		return "", "", "", apperr.New(apperr.NotAtLocation, "unknown current location "+currentLocation)
	}

	if area, ok := loc.Areas[currentArea]; ok {
		if area.Spots != nil {
			if _, ok := area.Spots[destination]; ok {
				return currentLocation, currentArea, destination, nil
			}
		}
		if _, ok := loc.Areas[destination]; ok {
			return currentLocation, destination, "", nil
		}
		for _, connected := range area.ConnectsTo {
			if connected == destination {
				return currentLocation, destination, "", nil
			}
		}
	}

	// Exits maps a direction/exit name to a destination location id, so
	// destination can name either the direction or the location directly.
	for exitName, dest := range loc.Exits {
		if (exitName == destination || dest == destination) {
			if _, ok := w.Locations[dest]; ok {
				return dest, "", "", nil
			}
		}
	}

	if _, ok := w.Locations[destination]; ok {
		return "", "", "", apperr.New(apperr.NotReachable, "destination "+destination+" is not reachable from "+currentLocation)
	}
	return "", "", "", apperr.New(apperr.UnknownDestination, "unknown destination "+destination)
}
