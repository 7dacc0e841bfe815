package worldstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
)

func testLookupWorld() *World {
	return &World{
		Locations: map[string]*Location{
			"clearing": {
				Name: "Clearing",
				Areas: map[string]*Area{
					"center": {
						Name:       "Center",
						ConnectsTo: []string{"edge"},
						Spots: map[string]*Spot{
							"mailbox": {Items: []*ItemInstance{{InstanceID: "leaflet-1"}}},
						},
					},
					"edge": {Name: "Edge"},
				},
				Exits: map[string]string{"north": "forest"},
			},
			"forest": {Name: "Forest"},
		},
		NPCs: map[string]*NPC{"elena": {TemplateID: "elena"}},
	}
}

func TestFindAndRemoveItemAtPosition(t *testing.T) {
	w := testLookupWorld()
	found, err := w.FindItemAtPosition("clearing", "center", "mailbox", "leaflet-1")
	require.NoError(t, err)
	assert.Equal(t, "leaflet-1", found.InstanceID)

	removed, err := w.RemoveItemAtPosition("clearing", "center", "mailbox", "leaflet-1")
	require.NoError(t, err)
	assert.Equal(t, "leaflet-1", removed.InstanceID)

	_, err = w.FindItemAtPosition("clearing", "center", "mailbox", "leaflet-1")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestAddItemAtPositionCreatesSpotWhenAbsent(t *testing.T) {
	w := testLookupWorld()
	require.NoError(t, w.AddItemAtPosition("clearing", "edge", "rock", &ItemInstance{InstanceID: "sword-1"}))

	found, err := w.FindItemAtPosition("clearing", "edge", "rock", "sword-1")
	require.NoError(t, err)
	assert.Equal(t, "sword-1", found.InstanceID)
}

func TestAddItemAtPositionAreaLevelWhenNoSpot(t *testing.T) {
	w := testLookupWorld()
	require.NoError(t, w.AddItemAtPosition("clearing", "edge", "", &ItemInstance{InstanceID: "sword-1"}))

	area := w.Locations["clearing"].Areas["edge"]
	require.Len(t, area.Items, 1)
	assert.Equal(t, "sword-1", area.Items[0].InstanceID)
}

func TestFindItemAnywhereSearchesSpotsAndAreas(t *testing.T) {
	w := testLookupWorld()
	found, err := w.FindItemAnywhere("leaflet-1")
	require.NoError(t, err)
	assert.Equal(t, "leaflet-1", found.InstanceID)

	_, err = w.FindItemAnywhere("nope")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestFindNPCUnknownIsNpcNotFound(t *testing.T) {
	w := testLookupWorld()
	_, err := w.FindNPC("nonexistent")
	assert.Equal(t, apperr.NpcNotFound, apperr.KindOf(err))
}

func TestResolveDestinationSpotWithinCurrentArea(t *testing.T) {
	w := testLookupWorld()
	loc, area, spot, err := w.ResolveDestination("clearing", "center", "mailbox")
	require.NoError(t, err)
	assert.Equal(t, "clearing", loc)
	assert.Equal(t, "center", area)
	assert.Equal(t, "mailbox", spot)
}

func TestResolveDestinationSiblingAreaDirectly(t *testing.T) {
	w := testLookupWorld()
	loc, area, spot, err := w.ResolveDestination("clearing", "center", "edge")
	require.NoError(t, err)
	assert.Equal(t, "clearing", loc)
	assert.Equal(t, "edge", area)
	assert.Empty(t, spot)
}

func TestResolveDestinationByExitName(t *testing.T) {
	w := testLookupWorld()
	loc, area, spot, err := w.ResolveDestination("clearing", "center", "north")
	require.NoError(t, err)
	assert.Equal(t, "forest", loc)
	assert.Empty(t, area)
	assert.Empty(t, spot)
}

func TestResolveDestinationByLocationIDDirectly(t *testing.T) {
	w := testLookupWorld()
	loc, _, _, err := w.ResolveDestination("clearing", "center", "forest")
	require.NoError(t, err)
	assert.Equal(t, "forest", loc)
}

func TestResolveDestinationKnownButUnreachableLocation(t *testing.T) {
	w := testLookupWorld()
	w.Locations["island"] = &Location{Name: "Island"}
	_, _, _, err := w.ResolveDestination("clearing", "center", "island")
	assert.Equal(t, apperr.NotReachable, apperr.KindOf(err))
}

func TestResolveDestinationUnknownDestination(t *testing.T) {
	w := testLookupWorld()
	_, _, _, err := w.ResolveDestination("clearing", "center", "nowhere")
	assert.Equal(t, apperr.UnknownDestination, apperr.KindOf(err))
}

func TestResolveDestinationUnknownCurrentLocation(t *testing.T) {
	w := testLookupWorld()
	_, _, _, err := w.ResolveDestination("nowhere", "center", "edge")
	assert.Equal(t, apperr.NotAtLocation, apperr.KindOf(err))
}
