package worldstate

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/config"
	"github.com/aeonia-ai/gaia-runtime/internal/store"
)

func newTestManagerWithConfig(t *testing.T, experienceID, cfgBody string) *Manager {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "experiences", experienceID), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "experiences", experienceID, "config.json"), []byte(cfgBody), 0o644))
	return NewManager(store.NewFileStore(root), config.NewLoader(root), nil)
}

const sharedConfigBody = `{
	"id": "exp", "name": "Exp",
	"state": {"model": "shared", "locking_enabled": true, "optimistic_versioning": true},
	"multiplayer": {"enabled": true}
}`

func seedWorld(t *testing.T, mgr *Manager, experienceID string) {
	t.Helper()
	now := time.Now()
	world := &World{
		Locations:     map[string]*Location{"start": {Name: "Start"}},
		NPCs:          map[string]*NPC{},
		ItemTemplates: map[string]*ItemTemplate{},
		GlobalState:   map[string]any{"counter": float64(0)},
		Metadata:      Metadata{Version: 1, CreatedAt: now, LastModified: now},
	}
	require.NoError(t, mgr.store.Write("experiences/"+experienceID+"/state/world.json", world, nil))
}

func TestUpdateWorldStateBumpsVersion(t *testing.T) {
	mgr := newTestManagerWithConfig(t, "exp", sharedConfigBody)
	seedWorld(t, mgr, "exp")

	updated, _, err := mgr.UpdateWorldState("exp", "", func(w *World) (*World, []WorldChange, error) {
		w.GlobalState["counter"] = float64(1)
		return w, []WorldChange{{Path: "global_state.counter", Operation: OpSet, Value: float64(1)}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Metadata.Version)

	reloaded, err := mgr.GetWorldState("exp", "")
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Metadata.Version)
	assert.Equal(t, float64(1), reloaded.GlobalState["counter"])
}

func TestUpdateWorldStateCoalescesConcurrentCallsWithSameKey(t *testing.T) {
	mgr := newTestManagerWithConfig(t, "exp", sharedConfigBody)
	seedWorld(t, mgr, "exp")

	var executions int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := mgr.UpdateWorldStateCoalesced("exp", "", "bump", func(w *World) (*World, []WorldChange, error) {
				mu.Lock()
				executions++
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				return w, nil, nil
			})
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Less(t, int(executions), 5, "concurrent coalesced calls should not all execute the mutator independently")
}

func TestGetWorldStateIsolatedRequiresPlayerID(t *testing.T) {
	mgr := newTestManagerWithConfig(t, "exp", `{
		"id": "exp", "name": "Exp",
		"state": {"model": "isolated"},
		"multiplayer": {"enabled": false},
		"bootstrap": {"player_starting_location": "start"}
	}`)
	_, err := mgr.GetWorldState("exp", "")
	assert.Error(t, err)
}

func TestGetPlayerViewNotInitializedReturnsNotInitializedKind(t *testing.T) {
	mgr := newTestManagerWithConfig(t, "exp", sharedConfigBody)
	_, err := mgr.GetPlayerView("exp", "nobody")
	require.Error(t, err)
	assert.Equal(t, apperr.NotInitialized, apperr.KindOf(err))
}

func TestSetAndGetCurrentExperienceRoundTrips(t *testing.T) {
	mgr := newTestManagerWithConfig(t, "exp", sharedConfigBody)

	current, err := mgr.GetCurrentExperience("player-1")
	require.NoError(t, err)
	assert.Empty(t, current)

	_, err = mgr.SetCurrentExperience("player-1", "exp")
	require.NoError(t, err)

	current, err = mgr.GetCurrentExperience("player-1")
	require.NoError(t, err)
	assert.Equal(t, "exp", current)
}

func TestSetCurrentExperienceRejectsUnloadableExperience(t *testing.T) {
	mgr := newTestManagerWithConfig(t, "exp", sharedConfigBody)

	_, err := mgr.SetCurrentExperience("player-1", "no-such-experience")
	require.Error(t, err)

	// The failed set must not have left a dangling pointer on the profile.
	current, err := mgr.GetCurrentExperience("player-1")
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestListExperiencesDedupsAndSorts(t *testing.T) {
	mgr := newTestManagerWithConfig(t, "zeta", sharedConfigBody)
	seedWorld(t, mgr, "zeta")
	require.NoError(t, mgr.store.Write("experiences/alpha/state/world.json", &World{Metadata: Metadata{Version: 1}}, nil))
	require.NoError(t, mgr.store.Write("experiences/alpha/config.json", map[string]any{"id": "alpha"}, nil))

	ids, err := mgr.ListExperiences()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, ids)
}
