package fastpath

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aeonia-ai/gaia-runtime/internal/config"
	"github.com/aeonia-ai/gaia-runtime/internal/store"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

const testExperienceID = "west-of-house"
const testPlayerID = "player-1"

// newTestManager wires a Manager over a throwaway filesystem root with one
// shared-model experience: a clearing whose center area connects to an
// edge area and holds a mailbox spot with four items (one of them a hidden
// coin), an NPC in each area, the matching item templates, and an
// already-initialized player view standing at the mailbox.
func newTestManager(t *testing.T) *worldstate.Manager {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "experiences", testExperienceID), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "experiences", testExperienceID, "config.json"), []byte(`{
		"id": "west-of-house", "name": "West of House",
		"state": {"model": "shared", "locking_enabled": true, "optimistic_versioning": true},
		"multiplayer": {"enabled": true}
	}`), 0o644))

	s := store.NewFileStore(root)
	loader := config.NewLoader(root)
	mgr := worldstate.NewManager(s, loader, nil)

	now := time.Now()
	world := &worldstate.World{
		Locations: map[string]*worldstate.Location{
			"clearing": {
				Name: "Clearing",
				Areas: map[string]*worldstate.Area{
					"center": {
						Name:       "Center",
						ConnectsTo: []string{"edge"},
						Spots: map[string]*worldstate.Spot{
							"mailbox": {
								Items: []*worldstate.ItemInstance{
									{InstanceID: "leaflet-1", TemplateID: "leaflet", SemanticName: "a leaflet", Visible: true, Collectible: true},
									{InstanceID: "tonic-1", TemplateID: "tonic", SemanticName: "a healing tonic", Visible: true, Collectible: true, Consumable: true},
									{InstanceID: "charm-1", TemplateID: "charm", SemanticName: "a quest charm", Visible: true, Collectible: true},
									{InstanceID: "coin-1", TemplateID: "coin", SemanticName: "a tarnished coin", Visible: false, Collectible: true, State: map[string]any{"tarnish": "heavy"}},
								},
							},
						},
					},
					"edge": {Name: "Edge"},
				},
				Exits: map[string]string{"north": "clearing"},
			},
		},
		NPCs: map[string]*worldstate.NPC{
			"elena": {TemplateID: "elena", Location: "clearing", Area: "center", GiftHooks: []worldstate.GiftHookRule{{
				TemplateID:       "leaflet",
				IncrementState:   "leaflets_received",
				Threshold:        1,
				QuestActiveKey:   "quest_active",
				GlobalStateKey:   "leaflets_total",
				DialogueText:     "A leaflet? How curious.",
				CompleteDialogue: "That's every leaflet I needed!",
			}}},
			"hermit": {TemplateID: "hermit", Location: "clearing", Area: "edge"},
		},
		ItemTemplates: map[string]*worldstate.ItemTemplate{
			"leaflet": {SemanticName: "a leaflet", Collectible: true},
			"tonic":   {SemanticName: "a healing tonic", Collectible: true, Consumable: true, Effects: map[string]any{"restore_health": float64(25)}},
			"charm":   {SemanticName: "a quest charm", Collectible: true, Effects: map[string]any{"set": map[string]any{"path": "progress.quest_states.intro", "value": "charmed"}}},
			"coin":    {SemanticName: "a tarnished coin", Collectible: true},
		},
		GlobalState: map[string]any{},
		Metadata:    worldstate.Metadata{Version: 1, CreatedAt: now, LastModified: now},
	}
	require.NoError(t, s.Write("experiences/west-of-house/state/world.json", world, nil))
	require.NoError(t, s.Write("experiences/west-of-house/state/world.template.json", world, nil))

	view := &worldstate.View{
		Player: worldstate.PlayerState{
			CurrentLocation:    "clearing",
			CurrentArea:        "center",
			CurrentSublocation: "mailbox",
			Inventory:          []*worldstate.ItemSnapshot{},
		},
		Progress: worldstate.Progress{VisitedLocations: []string{"clearing"}},
		Session:  worldstate.SessionInfo{StartedAt: now, LastActive: now},
		Metadata: worldstate.Metadata{Version: 1, CreatedAt: now, LastModified: now},
	}
	require.NoError(t, s.Write("players/"+testPlayerID+"/west-of-house/view.json", view, nil))

	return mgr
}
