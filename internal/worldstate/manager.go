package worldstate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/config"
	"github.com/aeonia-ai/gaia-runtime/internal/logging"
	"github.com/aeonia-ai/gaia-runtime/internal/store"
)

const maxVersionConflictRetries = 3

// WorldMutator transforms a world into its successor. It must be pure over
// (world, changes already applied by the caller) and must never suspend on
// I/O or an LLM call; it returns the list of changes it made so the caller
// can hand them to the broadcaster without recomputing a structural diff.
type WorldMutator func(world *World) (*World, []WorldChange, error)

// ViewMutator is the per-player-view analogue of WorldMutator.
type ViewMutator func(view *View) (*View, []WorldChange, error)

// ProfileMutator is the per-profile analogue; profiles carry no
// broadcastable changes since they're never part of a WorldUpdate.
type ProfileMutator func(profile *Profile) (*Profile, error)

// Manager is the unified state manager: the single point every
// fast-path handler, the markdown runner, and the gateway go through to
// read or mutate world state, player views, and profiles.
type Manager struct {
	store   store.Store
	configs *config.Loader
	logger  *slog.Logger
	group   singleflight.Group
}

// NewManager wires a Manager over a document store and config loader. A nil
// logger defaults to slog.Default().
func NewManager(s store.Store, configs *config.Loader, logger *slog.Logger) *Manager {
	return &Manager{
		store:   s,
		configs: configs,
		logger:  logging.WithComponent(logger, "worldstate"),
	}
}

// LoadConfig delegates to the config loader.
func (m *Manager) LoadConfig(experienceID string) (*config.ExperienceConfig, error) {
	return m.configs.Load(experienceID)
}

func (m *Manager) sharedWorldPath(cfg *config.ExperienceConfig) string {
	return fmt.Sprintf("experiences/%s/state/world.json", cfg.ID)
}

func (m *Manager) worldTemplatePath(cfg *config.ExperienceConfig) string {
	return fmt.Sprintf("experiences/%s/state/world.template.json", cfg.ID)
}

func (m *Manager) isolatedWorldPath(cfg *config.ExperienceConfig, playerID string) string {
	return fmt.Sprintf("experiences/%s/players/%s/world.json", cfg.ID, playerID)
}

func (m *Manager) worldPath(cfg *config.ExperienceConfig, playerID string) (string, error) {
	if cfg.State.Model == config.ModelShared {
		return m.sharedWorldPath(cfg), nil
	}
	if playerID == "" {
		return "", apperr.New(apperr.MalformedInput, "player_id is required for an isolated experience")
	}
	return m.isolatedWorldPath(cfg, playerID), nil
}

func (m *Manager) viewPath(experienceID, playerID string) string {
	return fmt.Sprintf("players/%s/%s/view.json", playerID, experienceID)
}

func (m *Manager) profilePath(playerID string) string {
	return fmt.Sprintf("players/%s/profile.json", playerID)
}

// GetWorldState returns the world for an experience. playerID is ignored
// for shared experiences and required for isolated ones.
func (m *Manager) GetWorldState(experienceID, playerID string) (*World, error) {
	cfg, err := m.configs.Load(experienceID)
	if err != nil {
		return nil, err
	}
	path, err := m.worldPath(cfg, playerID)
	if err != nil {
		return nil, err
	}
	var world World
	if err := m.store.Read(path, &world); err != nil {
		return nil, err
	}
	return &world, nil
}

// UpdateWorldState reads the world, applies mutate, bumps _version, and
// writes it back with an expected-version check, retrying on
// VersionConflict up to maxVersionConflictRetries times.
func (m *Manager) UpdateWorldState(experienceID, playerID string, mutate WorldMutator) (*World, []WorldChange, error) {
	return m.UpdateWorldStateCoalesced(experienceID, playerID, "", mutate)
}

// updateResult is the boxed return value shared across singleflight callers.
type updateResult[T any] struct {
	doc     T
	changes []WorldChange
}

// UpdateWorldStateCoalesced behaves like UpdateWorldState, but when
// coalesceKey is non-empty, concurrent callers racing with the same
// (experience, player, coalesceKey) collapse into a single mutator
// execution and share its result. Only useful for mutators known to be
// identical and idempotent, e.g. a client retrying the same action after
// a dropped response. Callers that want independent execution per call
// leave coalesceKey empty.
func (m *Manager) UpdateWorldStateCoalesced(experienceID, playerID, coalesceKey string, mutate WorldMutator) (*World, []WorldChange, error) {
	cfg, err := m.configs.Load(experienceID)
	if err != nil {
		return nil, nil, err
	}
	path, err := m.worldPath(cfg, playerID)
	if err != nil {
		return nil, nil, err
	}

	if coalesceKey == "" {
		return m.updateWorldStateLocked(path, cfg, mutate)
	}
	key := path + "|" + coalesceKey

	v, err, _ := m.group.Do(key, func() (any, error) {
		world, changes, err := m.updateWorldStateLocked(path, cfg, mutate)
		if err != nil {
			return nil, err
		}
		return updateResult[*World]{doc: world, changes: changes}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	res := v.(updateResult[*World])
	return res.doc, res.changes, nil
}

func (m *Manager) updateWorldStateLocked(path string, cfg *config.ExperienceConfig, mutate WorldMutator) (*World, []WorldChange, error) {
	timeout := time.Duration(cfg.State.LockTimeoutMS) * time.Millisecond

	var world *World
	var changes []WorldChange
	run := func() error {
		w, c, err := m.retryWriteWorld(path, mutate)
		world, changes = w, c
		return err
	}

	if cfg.State.LockingEnabled {
		if err := m.store.WithLock(path, timeout, run); err != nil {
			return nil, nil, err
		}
		return world, changes, nil
	}
	if err := run(); err != nil {
		return nil, nil, err
	}
	return world, changes, nil
}

func (m *Manager) retryWriteWorld(path string, mutate WorldMutator) (*World, []WorldChange, error) {
	var lastErr error
	for attempt := 0; attempt <= maxVersionConflictRetries; attempt++ {
		var current World
		if err := m.store.Read(path, &current); err != nil {
			return nil, nil, err
		}
		next, changes, err := mutate(&current)
		if err != nil {
			return nil, nil, err
		}
		expected := current.Metadata.Version
		next.Metadata.Version = expected + 1
		next.Metadata.LastModified = time.Now()
		if next.Metadata.CreatedAt.IsZero() {
			next.Metadata.CreatedAt = current.Metadata.CreatedAt
		}
		if err := m.store.Write(path, next, &expected); err != nil {
			if apperr.Is(err, apperr.VersionConflict) {
				lastErr = err
				continue
			}
			return nil, nil, err
		}
		return next, changes, nil
	}
	return nil, nil, apperr.Wrap(apperr.Conflict, fmt.Sprintf("version conflict exhausted %d retries for %q", maxVersionConflictRetries, path), lastErr)
}

// GetPlayerView returns the view for (experience, player). It does not
// auto-create: callers must have already run EnsurePlayerInitialized.
func (m *Manager) GetPlayerView(experienceID, playerID string) (*View, error) {
	var view View
	path := m.viewPath(experienceID, playerID)
	if err := m.store.Read(path, &view); err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, apperr.New(apperr.NotInitialized, fmt.Sprintf("view for player %q in experience %q is not initialized", playerID, experienceID))
		}
		return nil, err
	}
	return &view, nil
}

// UpdatePlayerView is the per-view analogue of UpdateWorldState, scoped to
// the player's own view file and lock.
func (m *Manager) UpdatePlayerView(experienceID, playerID string, mutate ViewMutator) (*View, []WorldChange, error) {
	cfg, err := m.configs.Load(experienceID)
	if err != nil {
		return nil, nil, err
	}
	path := m.viewPath(experienceID, playerID)
	timeout := time.Duration(cfg.State.LockTimeoutMS) * time.Millisecond

	var view *View
	var changes []WorldChange
	run := func() error {
		v, c, err := m.retryWriteView(path, mutate)
		view, changes = v, c
		return err
	}

	if cfg.State.LockingEnabled {
		if err := m.store.WithLock(path, timeout, run); err != nil {
			return nil, nil, err
		}
		return view, changes, nil
	}
	if err := run(); err != nil {
		return nil, nil, err
	}
	return view, changes, nil
}

func (m *Manager) retryWriteView(path string, mutate ViewMutator) (*View, []WorldChange, error) {
	var lastErr error
	for attempt := 0; attempt <= maxVersionConflictRetries; attempt++ {
		var current View
		if err := m.store.Read(path, &current); err != nil {
			return nil, nil, err
		}
		next, changes, err := mutate(&current)
		if err != nil {
			return nil, nil, err
		}
		expected := current.Metadata.Version
		next.Metadata.Version = expected + 1
		next.Metadata.LastModified = time.Now()
		if next.Metadata.CreatedAt.IsZero() {
			next.Metadata.CreatedAt = current.Metadata.CreatedAt
		}
		if err := m.store.Write(path, next, &expected); err != nil {
			if apperr.Is(err, apperr.VersionConflict) {
				lastErr = err
				continue
			}
			return nil, nil, err
		}
		return next, changes, nil
	}
	return nil, nil, apperr.Wrap(apperr.Conflict, fmt.Sprintf("view version conflict exhausted %d retries for %q", maxVersionConflictRetries, path), lastErr)
}

// GetPlayerProfile returns the player's cross-experience profile, creating
// an empty one on first reference.
func (m *Manager) GetPlayerProfile(playerID string) (*Profile, error) {
	path := m.profilePath(playerID)
	var profile Profile
	if err := m.store.Read(path, &profile); err != nil {
		if !apperr.Is(err, apperr.NotFound) {
			return nil, err
		}
		now := time.Now()
		profile = Profile{
			GlobalStats: GlobalStats{ExperiencesPlayed: []string{}},
			Metadata:    Metadata{Version: 1, CreatedAt: now, LastModified: now},
		}
		if err := m.store.Write(path, &profile, nil); err != nil {
			return nil, err
		}
	}
	return &profile, nil
}

// UpdateProfile applies mutate to the player's profile under the same
// read-mutate-write-with-retry discipline as world and view updates.
func (m *Manager) UpdateProfile(playerID string, mutate ProfileMutator) (*Profile, error) {
	path := m.profilePath(playerID)
	var lastErr error
	for attempt := 0; attempt <= maxVersionConflictRetries; attempt++ {
		current, err := m.GetPlayerProfile(playerID)
		if err != nil {
			return nil, err
		}
		next, err := mutate(current)
		if err != nil {
			return nil, err
		}
		expected := current.Metadata.Version
		next.Metadata.Version = expected + 1
		next.Metadata.LastModified = time.Now()
		if next.Metadata.CreatedAt.IsZero() {
			next.Metadata.CreatedAt = current.Metadata.CreatedAt
		}
		if err := m.store.Write(path, next, &expected); err != nil {
			if apperr.Is(err, apperr.VersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return next, nil
	}
	return nil, apperr.Wrap(apperr.Conflict, fmt.Sprintf("profile version conflict exhausted %d retries for %q", maxVersionConflictRetries, path), lastErr)
}

// SetCurrentExperience records which experience the player is currently in.
// The experience's config must load successfully: a profile never points at
// an experience the runtime would refuse to serve.
func (m *Manager) SetCurrentExperience(playerID, experienceID string) (*Profile, error) {
	if _, err := m.configs.Load(experienceID); err != nil {
		return nil, err
	}
	return m.UpdateProfile(playerID, func(p *Profile) (*Profile, error) {
		id := experienceID
		p.CurrentExperience = &id
		return p, nil
	})
}

// GetCurrentExperience returns the player's current experience id, or "" if
// none is set.
func (m *Manager) GetCurrentExperience(playerID string) (string, error) {
	profile, err := m.GetPlayerProfile(playerID)
	if err != nil {
		return "", err
	}
	if profile.CurrentExperience == nil {
		return "", nil
	}
	return *profile.CurrentExperience, nil
}

// ListExperiences returns every experience id discoverable under the store.
func (m *Manager) ListExperiences() ([]string, error) {
	paths, err := m.store.List("experiences")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ids []string
	for _, p := range paths {
		parts := strings.SplitN(p, "/", 3)
		if len(parts) < 2 || parts[0] != "experiences" {
			continue
		}
		if id := parts[1]; !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GetExperienceInfo returns the experience's validated config.
func (m *Manager) GetExperienceInfo(experienceID string) (*config.ExperienceConfig, error) {
	return m.configs.Load(experienceID)
}
