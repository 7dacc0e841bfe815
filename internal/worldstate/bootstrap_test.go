package worldstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const isolatedConfigBody = `{
	"id": "exp", "name": "Exp",
	"state": {"model": "isolated"},
	"multiplayer": {"enabled": false},
	"bootstrap": {
		"player_starting_location": "start",
		"player_starting_inventory": ["torch"],
		"copy_template_for_isolated": true
	}
}`

func TestEnsurePlayerInitializedCreatesViewOnce(t *testing.T) {
	mgr := newTestManagerWithConfig(t, "exp", sharedConfigBody)

	view, err := mgr.EnsurePlayerInitialized("exp", "player-1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Metadata.Version)

	second, err := mgr.EnsurePlayerInitialized("exp", "player-1")
	require.NoError(t, err)
	assert.True(t, view.Metadata.CreatedAt.Equal(second.Metadata.CreatedAt))
}

func TestEnsurePlayerInitializedAppliesBootstrapDefaults(t *testing.T) {
	mgr := newTestManagerWithConfig(t, "exp", isolatedConfigBody)
	seedWorld(t, mgr, "exp")

	view, err := mgr.EnsurePlayerInitialized("exp", "player-1")
	require.NoError(t, err)
	assert.Equal(t, "start", view.Player.CurrentLocation)
	require.Len(t, view.Player.Inventory, 1)
	assert.Equal(t, "torch", view.Player.Inventory[0].TemplateID)
	assert.Equal(t, []string{"start"}, view.Progress.VisitedLocations)
}

func TestEnsurePlayerInitializedCopiesIsolatedWorldFromTemplate(t *testing.T) {
	mgr := newTestManagerWithConfig(t, "exp", isolatedConfigBody)
	seedWorld(t, mgr, "exp")

	_, err := mgr.EnsurePlayerInitialized("exp", "player-1")
	require.NoError(t, err)

	world, err := mgr.GetWorldState("exp", "player-1")
	require.NoError(t, err)
	assert.Contains(t, world.Locations, "start")
	assert.Equal(t, 1, world.Metadata.Version)

	assert.True(t, mgr.store.Exists("experiences/exp/state/world.template.json"))
}

func TestEnsurePlayerInitializedFreezesSharedWorldTemplate(t *testing.T) {
	mgr := newTestManagerWithConfig(t, "exp", sharedConfigBody)
	seedWorld(t, mgr, "exp")

	_, err := mgr.EnsurePlayerInitialized("exp", "player-1")
	require.NoError(t, err)
	assert.True(t, mgr.store.Exists("experiences/exp/state/world.template.json"),
		"the shared world must be frozen before any player can mutate it")

	// Mutations after the freeze must not leak into the template.
	_, _, err = mgr.UpdateWorldState("exp", "", func(w *World) (*World, []WorldChange, error) {
		w.GlobalState["counter"] = float64(7)
		return w, nil, nil
	})
	require.NoError(t, err)

	var tmpl World
	require.NoError(t, mgr.store.Read("experiences/exp/state/world.template.json", &tmpl))
	assert.Equal(t, float64(0), tmpl.GlobalState["counter"])
}

func TestEnsurePlayerInitializedRecordsExperienceOnProfile(t *testing.T) {
	mgr := newTestManagerWithConfig(t, "exp", sharedConfigBody)

	_, err := mgr.EnsurePlayerInitialized("exp", "player-1")
	require.NoError(t, err)

	profile, err := mgr.GetPlayerProfile("player-1")
	require.NoError(t, err)
	assert.Contains(t, profile.GlobalStats.ExperiencesPlayed, "exp")
}
