package worldstate

import (
	"time"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/config"
)

// EnsurePlayerInitialized is idempotent: if a view already exists for
// (experience, player) it is returned unchanged. Otherwise the experience's
// world template is frozen if it hasn't been yet, a view is created per
// the experience's bootstrap config, an isolated world is copied from the
// template when configured to do so, and the experience is recorded on the
// player's cross-experience profile. This is the only place a view is
// created; every other state method assumes one already exists.
func (m *Manager) EnsurePlayerInitialized(experienceID, playerID string) (*View, error) {
	existing, err := m.GetPlayerView(experienceID, playerID)
	if err == nil {
		return existing, nil
	}
	if apperr.KindOf(err) != apperr.NotInitialized {
		return nil, err
	}

	cfg, err := m.configs.Load(experienceID)
	if err != nil {
		return nil, err
	}

	if err := m.ensureWorldTemplate(cfg); err != nil {
		return nil, err
	}
	if cfg.State.Model == config.ModelIsolated && cfg.Bootstrap.CopyTemplateForIsolated {
		if err := m.copyTemplateWorldForPlayer(cfg, playerID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	inventory := make([]*ItemSnapshot, 0, len(cfg.Bootstrap.PlayerStartingInventory))
	for _, templateID := range cfg.Bootstrap.PlayerStartingInventory {
		inventory = append(inventory, &ItemSnapshot{TemplateID: templateID})
	}

	view := &View{
		Player: PlayerState{
			CurrentLocation: cfg.Bootstrap.PlayerStartingLocation,
			Inventory:       inventory,
		},
		Progress: Progress{
			VisitedLocations: []string{cfg.Bootstrap.PlayerStartingLocation},
		},
		Session: SessionInfo{
			StartedAt:  now,
			LastActive: now,
		},
		Metadata: Metadata{Version: 1, CreatedAt: now, LastModified: now},
	}

	if err := m.store.Write(m.viewPath(experienceID, playerID), view, nil); err != nil {
		return nil, err
	}

	if _, err := m.recordExperiencePlayed(playerID, experienceID); err != nil {
		return nil, err
	}

	return view, nil
}

// ensureWorldTemplate freezes the experience's authored seed world as its
// template on first reference, before any player mutation can land, so a
// reset always has a pristine copy to restore from. This runs for both
// state models: the shared world mutates in place and the isolated worlds
// copy from the template, but either way the template must capture the
// authored content, not a live document. An experience with no authored
// world yet has nothing to freeze; that is not an error here (reset will
// refuse on its own when it finds no template).
func (m *Manager) ensureWorldTemplate(cfg *config.ExperienceConfig) error {
	templatePath := m.worldTemplatePath(cfg)
	if m.store.Exists(templatePath) {
		return nil
	}
	var seed World
	if err := m.store.Read(m.sharedWorldPath(cfg), &seed); err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil
		}
		return err
	}
	return m.store.Write(templatePath, &seed, nil)
}

// copyTemplateWorldForPlayer deep-copies the frozen template into the
// player's private world. It is a no-op if the player's world already
// exists.
func (m *Manager) copyTemplateWorldForPlayer(cfg *config.ExperienceConfig, playerID string) error {
	playerPath := m.isolatedWorldPath(cfg, playerID)
	if m.store.Exists(playerPath) {
		return nil
	}

	var tmpl World
	if err := m.store.Read(m.worldTemplatePath(cfg), &tmpl); err != nil {
		return err
	}

	now := time.Now()
	tmpl.Metadata = Metadata{Version: 1, CreatedAt: now, LastModified: now}
	return m.store.Write(playerPath, &tmpl, nil)
}

func (m *Manager) recordExperiencePlayed(playerID, experienceID string) (*Profile, error) {
	return m.UpdateProfile(playerID, func(p *Profile) (*Profile, error) {
		if !containsString(p.GlobalStats.ExperiencesPlayed, experienceID) {
			p.GlobalStats.ExperiencesPlayed = append(p.GlobalStats.ExperiencesPlayed, experienceID)
		}
		return p, nil
	})
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
