// Package worldstate is the unified state manager: the single
// authority over world documents, player views, and profiles. Everything
// else in the runtime (fast-path handlers, the markdown runner, the
// gateway) reads and mutates state through a *Manager, never through the
// store directly.
package worldstate

import "time"

// Metadata is carried by every top-level document (world, view, profile)
// and enforces the optimistic-versioning invariant: _version strictly
// increases with every accepted write.
type Metadata struct {
	Version      int       `json:"_version"`
	CreatedAt    time.Time `json:"_created_at"`
	LastModified time.Time `json:"last_modified"`
}

// ItemInstance is a concrete item sitting in the world, as opposed to its
// template definition.
type ItemInstance struct {
	InstanceID   string         `json:"instance_id"`
	TemplateID   string         `json:"template_id"`
	SemanticName string         `json:"semantic_name"`
	Visible      bool           `json:"visible"`
	Collectible  bool           `json:"collectible"`
	Consumable   bool           `json:"consumable"`
	Effects      map[string]any `json:"effects,omitempty"`
	State        map[string]any `json:"state,omitempty"`
}

// Spot is the finest-grained place items can sit.
type Spot struct {
	Items []*ItemInstance `json:"items,omitempty"`
}

// Area groups spots and can itself hold items directly (when no spot
// applies) and a set of adjacent areas/locations for `go` resolution.
type Area struct {
	Name       string           `json:"name,omitempty"`
	Spots      map[string]*Spot `json:"spots,omitempty"`
	Items      []*ItemInstance  `json:"items,omitempty"`
	ConnectsTo []string         `json:"connects_to,omitempty"`
}

// Location is the top-level place in the world tree.
type Location struct {
	Name  string           `json:"name,omitempty"`
	Areas map[string]*Area `json:"areas,omitempty"`
	Exits map[string]string `json:"exits,omitempty"`
}

// NPC is a world-resident non-player character. Relationship state with a
// given player intentionally does not live here; it lives on that
// player's view, to avoid the NPC -> players -> NPC reference cycle.
type NPC struct {
	TemplateID string         `json:"template_id"`
	Location   string         `json:"location"`
	Area       string         `json:"area,omitempty"`
	State      map[string]any `json:"state,omitempty"`
	GiftHooks  []GiftHookRule `json:"gift_hooks,omitempty"`
}

// GiftHookRule is one declarative rule in an NPC's gift table, evaluated
// in code when a matching item is given, never by the LLM.
type GiftHookRule struct {
	TemplateID      string         `json:"template_id"`
	IncrementState  string         `json:"increment_state,omitempty"`
	ThresholdState  string         `json:"threshold_state,omitempty"`
	Threshold       int            `json:"threshold,omitempty"`
	QuestActiveKey  string         `json:"quest_active_key,omitempty"`
	DialogueText    string         `json:"dialogue_text,omitempty"`
	CompleteDialogue string        `json:"complete_dialogue,omitempty"`
	GlobalStateKey  string         `json:"global_state_key,omitempty"`
}

// ItemTemplate is the definition an ItemInstance's template_id points at:
// its effects block and consumable flag. Instances copy their template's
// fields at creation time so inventory snapshots stay self-contained, but
// use_item still consults the template catalog directly since the view's
// ItemSnapshot is intentionally minimal.
type ItemTemplate struct {
	SemanticName string         `json:"semantic_name"`
	Collectible  bool           `json:"collectible"`
	Consumable   bool           `json:"consumable"`
	Effects      map[string]any `json:"effects,omitempty"`
}

// World is the authoritative document for an experience (shared model) or
// for a single player within an experience (isolated model).
type World struct {
	Locations     map[string]*Location     `json:"locations"`
	NPCs          map[string]*NPC          `json:"npcs"`
	ItemTemplates map[string]*ItemTemplate `json:"item_templates,omitempty"`
	GlobalState   map[string]any           `json:"global_state,omitempty"`
	Metadata      Metadata                 `json:"metadata"`
}

// TemplateFor looks up an item template by id.
func (w *World) TemplateFor(templateID string) (*ItemTemplate, bool) {
	if w.ItemTemplates == nil {
		return nil, false
	}
	t, ok := w.ItemTemplates[templateID]
	return t, ok
}

// ItemSnapshot is the record of an item kept in a player's inventory.
// Instance preserves the world instance exactly as it was collected
// (visibility, per-instance state), so dropping the item puts back what
// was picked up rather than a re-defaulted copy. It is nil for items that
// never lived in a world, e.g. bootstrap starting inventory.
type ItemSnapshot struct {
	InstanceID   string        `json:"instance_id"`
	TemplateID   string        `json:"template_id"`
	SemanticName string        `json:"semantic_name"`
	Instance     *ItemInstance `json:"instance,omitempty"`
}

// PlayerState is the player-facing position/inventory/stats block of a View.
type PlayerState struct {
	CurrentLocation    string          `json:"current_location"`
	CurrentArea        string          `json:"current_area,omitempty"`
	CurrentSublocation string          `json:"current_sublocation,omitempty"`
	Inventory          []*ItemSnapshot `json:"inventory"`
	Stats              map[string]any  `json:"stats,omitempty"`
}

// Progress tracks a player's accumulated advancement within an experience.
type Progress struct {
	VisitedLocations []string       `json:"visited_locations"`
	QuestStates      map[string]any `json:"quest_states,omitempty"`
	Achievements     []string       `json:"achievements,omitempty"`
}

// SessionInfo tracks the player's current connection/turn bookkeeping.
type SessionInfo struct {
	StartedAt   time.Time `json:"started_at"`
	LastActive  time.Time `json:"last_active"`
	TurnsTaken  int       `json:"turns_taken"`
}

// View is the per-(player, experience) mutable projection of the world.
type View struct {
	Player   PlayerState `json:"player"`
	Progress Progress    `json:"progress"`
	Session  SessionInfo `json:"session"`
	Metadata Metadata    `json:"metadata"`
}

// Profile is the single cross-experience document per player.
type Profile struct {
	CurrentExperience *string        `json:"current_experience"`
	Preferences       map[string]any `json:"preferences,omitempty"`
	GlobalStats       GlobalStats    `json:"global_stats"`
	Metadata          Metadata       `json:"metadata"`
}

// GlobalStats is the cross-experience set of stats tracked on a profile.
type GlobalStats struct {
	ExperiencesPlayed []string `json:"experiences_played"`
}

// ChangeOp is the operation marker on a WorldChange, matching the
// state_updates contract the markdown runner parses from LLM output.
type ChangeOp string

const (
	OpSet    ChangeOp = "set"
	OpAppend ChangeOp = "append"
	OpRemove ChangeOp = "remove"
)

// WorldChange is one entry of a WorldUpdate's diff, or one entry of a
// markdown command's parsed state_updates.
type WorldChange struct {
	Path      string `json:"path"`
	Operation ChangeOp `json:"operation"`
	Value     any    `json:"value,omitempty"`
	Item      any    `json:"item,omitempty"`
	ItemID    string `json:"item_id,omitempty"`
}

// ResetSummary is returned by both the preview and the executed reset.
type ResetSummary struct {
	Experience       string   `json:"experience"`
	PlayerViewCount  int      `json:"player_view_count"`
	CurrentVersion   int      `json:"current_version"`
	BackupPath       string   `json:"backup_path"`
	Performed        bool     `json:"performed"`
	DeletedViewPaths []string `json:"deleted_view_paths,omitempty"`
}
