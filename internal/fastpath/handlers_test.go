package fastpath

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

func req(args map[string]any) Request {
	return Request{ExperienceID: testExperienceID, PlayerID: testPlayerID, Args: args}
}

func TestCollectItemMovesItemIntoInventory(t *testing.T) {
	mgr := newTestManager(t)
	h := &CollectItemHandler{}

	res, err := h.Execute(context.Background(), mgr, req(map[string]any{"instance_id": "leaflet-1"}))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Changes, 2)

	view, err := mgr.GetPlayerView(testExperienceID, testPlayerID)
	require.NoError(t, err)
	require.Len(t, view.Player.Inventory, 1)
	assert.Equal(t, "leaflet-1", view.Player.Inventory[0].InstanceID)

	world, err := mgr.GetWorldState(testExperienceID, testPlayerID)
	require.NoError(t, err)
	_, err = world.FindItemAtPosition("clearing", "center", "mailbox", "leaflet-1")
	assert.Error(t, err)
}

func TestCollectItemTwiceFailsAlreadyCollected(t *testing.T) {
	mgr := newTestManager(t)
	h := &CollectItemHandler{}

	_, err := h.Execute(context.Background(), mgr, req(map[string]any{"instance_id": "leaflet-1"}))
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), mgr, req(map[string]any{"instance_id": "leaflet-1"}))
	require.Error(t, err)
	assert.Equal(t, apperr.AlreadyCollected, apperr.KindOf(err))
}

func TestCollectItemMissingArgIsMalformedInput(t *testing.T) {
	mgr := newTestManager(t)
	h := &CollectItemHandler{}

	_, err := h.Execute(context.Background(), mgr, req(nil))
	require.Error(t, err)
	assert.Equal(t, apperr.MalformedInput, apperr.KindOf(err))
}

func TestGoMovesPlayerAndTracksVisited(t *testing.T) {
	mgr := newTestManager(t)
	h := &GoHandler{}

	res, err := h.Execute(context.Background(), mgr, req(map[string]any{"destination": "edge"}))
	require.NoError(t, err)
	assert.True(t, res.Success)

	view, err := mgr.GetPlayerView(testExperienceID, testPlayerID)
	require.NoError(t, err)
	assert.Equal(t, "edge", view.Player.CurrentArea)
	assert.Contains(t, view.Progress.VisitedLocations, "clearing")
}

func TestGoUnknownDestinationFails(t *testing.T) {
	mgr := newTestManager(t)
	h := &GoHandler{}

	_, err := h.Execute(context.Background(), mgr, req(map[string]any{"destination": "nowhere"}))
	require.Error(t, err)
}

func TestExamineItemInWorldReportsMetadata(t *testing.T) {
	mgr := newTestManager(t)
	h := &ExamineHandler{}

	res, err := h.Execute(context.Background(), mgr, req(map[string]any{"instance_id": "leaflet-1"}))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, true, res.Metadata["collectible"])
	assert.Empty(t, res.Changes, "examine must never emit a change")
}

func TestExamineDoesNotMutateWorld(t *testing.T) {
	mgr := newTestManager(t)
	h := &ExamineHandler{}

	before, err := mgr.GetWorldState(testExperienceID, testPlayerID)
	require.NoError(t, err)
	beforeVersion := before.Metadata.Version

	_, err = h.Execute(context.Background(), mgr, req(map[string]any{"instance_id": "leaflet-1"}))
	require.NoError(t, err)

	after, err := mgr.GetWorldState(testExperienceID, testPlayerID)
	require.NoError(t, err)
	assert.Equal(t, beforeVersion, after.Metadata.Version)
}

func TestInventoryListsCollectedItems(t *testing.T) {
	mgr := newTestManager(t)
	_, err := (&CollectItemHandler{}).Execute(context.Background(), mgr, req(map[string]any{"instance_id": "leaflet-1"}))
	require.NoError(t, err)

	res, err := (&InventoryHandler{}).Execute(context.Background(), mgr, req(nil))
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestAdminEditRejectsNonAdminRequest(t *testing.T) {
	mgr := newTestManager(t)
	h := &AdminEditHandler{}

	r := req(map[string]any{"object_type": "npc", "object_id": "elena", "path": "state.mood", "value": "happy"})
	r.Admin = false
	_, err := h.Execute(context.Background(), mgr, r)
	require.Error(t, err)
	assert.Equal(t, apperr.PermissionDenied, apperr.KindOf(err))
}

func TestAdminEditSetsNPCState(t *testing.T) {
	mgr := newTestManager(t)
	h := &AdminEditHandler{}

	r := req(map[string]any{"object_type": "npc", "object_id": "elena", "path": "state.mood", "value": "happy"})
	r.Admin = true
	res, err := h.Execute(context.Background(), mgr, r)
	require.NoError(t, err)
	assert.True(t, res.Success)

	world, err := mgr.GetWorldState(testExperienceID, testPlayerID)
	require.NoError(t, err)
	assert.Equal(t, "happy", world.NPCs["elena"].State["mood"])
}

func TestAdminExamineReturnsProperties(t *testing.T) {
	mgr := newTestManager(t)
	h := &AdminExamineHandler{}

	r := req(map[string]any{"object_type": "location", "object_id": "clearing"})
	r.Admin = true
	res, err := h.Execute(context.Background(), mgr, r)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Metadata["properties"])
}

func TestAdminResetRequiresConfirmation(t *testing.T) {
	mgr := newTestManager(t)
	h := &AdminResetHandler{}

	r := req(nil)
	r.Admin = true
	_, err := h.Execute(context.Background(), mgr, r)
	require.Error(t, err)
	assert.Equal(t, apperr.ConfirmationRequired, apperr.KindOf(err))
}

func TestAdminResetWithConfirmationSucceeds(t *testing.T) {
	mgr := newTestManager(t)
	_, err := (&CollectItemHandler{}).Execute(context.Background(), mgr, req(map[string]any{"instance_id": "leaflet-1"}))
	require.NoError(t, err)

	h := &AdminResetHandler{}
	r := req(map[string]any{"confirm": "CONFIRM"})
	r.Admin = true
	res, err := h.Execute(context.Background(), mgr, r)
	require.NoError(t, err)
	assert.True(t, res.Success)

	world, err := mgr.GetWorldState(testExperienceID, testPlayerID)
	require.NoError(t, err)
	_, err = world.FindItemAtPosition("clearing", "center", "mailbox", "leaflet-1")
	assert.NoError(t, err, "reset should have restored the collected item")

	require.Len(t, res.Changes, 1, "a confirmed reset must emit a world-scoped change so the gateway broadcasts it")
	assert.Equal(t, worldstate.OpSet, res.Changes[0].Operation)
}
