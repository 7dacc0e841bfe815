package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
)

func writeConfig(t *testing.T, root, experienceID, body string) {
	t.Helper()
	dir := filepath.Join(root, "experiences", experienceID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0o644))
}

func TestLoadValidSharedConfig(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "west-of-house", `{
		"id": "west-of-house", "name": "West of House",
		"state": {"model": "shared", "locking_enabled": true, "optimistic_versioning": true},
		"multiplayer": {"enabled": true}
	}`)

	cfg, err := NewLoader(root).Load("west-of-house")
	require.NoError(t, err)
	assert.Equal(t, ModelShared, cfg.State.Model)
	assert.Equal(t, defaultLockTimeoutMS, cfg.State.LockTimeoutMS)
}

func TestLoadCachesAcrossCalls(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "exp", `{
		"id": "exp", "name": "Exp",
		"state": {"model": "isolated"},
		"multiplayer": {"enabled": false},
		"bootstrap": {"player_starting_location": "start"}
	}`)

	loader := NewLoader(root)
	first, err := loader.Load("exp")
	require.NoError(t, err)

	// Mutate the file on disk; Load should still return the cached value.
	writeConfig(t, root, "exp", `{"id": "exp", "name": "Changed", "state": {"model": "isolated"}, "multiplayer": {"enabled": false}, "bootstrap": {"player_starting_location": "start"}}`)
	second, err := loader.Load("exp")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "Exp", second.Name)
}

func TestReloadPicksUpChanges(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "exp", `{"id": "exp", "name": "Exp", "state": {"model": "isolated"}, "multiplayer": {"enabled": false}, "bootstrap": {"player_starting_location": "start"}}`)

	loader := NewLoader(root)
	_, err := loader.Load("exp")
	require.NoError(t, err)

	writeConfig(t, root, "exp", `{"id": "exp", "name": "Renamed", "state": {"model": "isolated"}, "multiplayer": {"enabled": false}, "bootstrap": {"player_starting_location": "start"}}`)
	reloaded, err := loader.Reload("exp")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", reloaded.Name)
}

func TestLoadMissingConfigIsNotFound(t *testing.T) {
	_, err := NewLoader(t.TempDir()).Load("nope")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestValidateRejectsMismatchedMultiplayerFlag(t *testing.T) {
	cfg := &ExperienceConfig{
		ID:   "x",
		Name: "X",
		State: StateConfig{Model: ModelShared},
		Multiplayer: MultiplayerConfig{Enabled: false},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Equal(t, apperr.ConfigInvalid, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "multiplayer.enabled")
}

func TestValidateRequiresStartingLocationForIsolated(t *testing.T) {
	cfg := &ExperienceConfig{
		ID:   "x",
		Name: "X",
		State: StateConfig{Model: ModelIsolated},
		Multiplayer: MultiplayerConfig{Enabled: false},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootstrap.player_starting_location")
}

func TestValidateAcceptsIsolatedWithStartingLocation(t *testing.T) {
	cfg := &ExperienceConfig{
		ID:          "x",
		Name:        "X",
		State:       StateConfig{Model: ModelIsolated},
		Multiplayer: MultiplayerConfig{Enabled: false},
		Bootstrap:   BootstrapConfig{PlayerStartingLocation: "start"},
	}
	assert.NoError(t, Validate(cfg))
}
