package worldstate

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/config"
)

// ResetExperience enumerates all player views for the experience and the
// experience's world(s); with preview=true it only reports what a reset
// would do. With preview=false it deletes player views, restores the
// world from its frozen template (leaving a timestamped backup), and
// bumps the version once more. profile.current_experience is never
// touched, since the profile is a cross-experience resource a world reset
// has no authority over.
func (m *Manager) ResetExperience(experienceID string, preview bool) (*ResetSummary, error) {
	cfg, err := m.configs.Load(experienceID)
	if err != nil {
		return nil, err
	}

	viewPaths, err := m.findPlayerViewPaths(experienceID)
	if err != nil {
		return nil, err
	}
	worldPaths, err := m.findWorldPaths(cfg)
	if err != nil {
		return nil, err
	}

	currentVersion := 0
	if cfg.State.Model == config.ModelShared && len(worldPaths) == 1 {
		var world World
		if err := m.store.Read(worldPaths[0], &world); err != nil && !apperr.Is(err, apperr.NotFound) {
			return nil, err
		} else if err == nil {
			currentVersion = world.Metadata.Version
		}
	}

	summary := &ResetSummary{
		Experience:      experienceID,
		PlayerViewCount: len(viewPaths),
		CurrentVersion:  currentVersion,
		BackupPath:      fmt.Sprintf("experiences/%s/backups/%s", cfg.ID, time.Now().UTC().Format(time.RFC3339)),
	}

	if preview {
		return summary, apperr.New(apperr.ConfirmationRequired, fmt.Sprintf("reset of %q requires confirmation", experienceID)).
			WithPayload(map[string]any{
				"player_view_count": summary.PlayerViewCount,
				"current_version":   summary.CurrentVersion,
				"backup_path":       summary.BackupPath,
			})
	}

	timeout := time.Duration(cfg.State.LockTimeoutMS) * time.Millisecond
	allPaths := append(append([]string{}, viewPaths...), worldPaths...)
	sort.Strings(allPaths)

	err = m.withAllLocks(allPaths, timeout, func() error {
		return m.performReset(cfg, viewPaths, worldPaths, summary)
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// withAllLocks acquires every path's lock before running fn, releasing all
// of them (in reverse order) on any exit path. If any lock times out, no
// lock already held is used to perform a partial reset: the whole chain
// unwinds and fn never runs.
func (m *Manager) withAllLocks(paths []string, timeout time.Duration, fn func() error) error {
	if len(paths) == 0 {
		return fn()
	}
	return m.store.WithLock(paths[0], timeout, func() error {
		return m.withAllLocks(paths[1:], timeout, fn)
	})
}

func (m *Manager) performReset(cfg *config.ExperienceConfig, viewPaths, worldPaths []string, summary *ResetSummary) error {
	for _, p := range worldPaths {
		if err := m.backupDocument(p, summary.BackupPath); err != nil {
			return err
		}
	}

	for _, p := range viewPaths {
		if err := m.store.Delete(p); err != nil {
			return err
		}
		summary.DeletedViewPaths = append(summary.DeletedViewPaths, p)
	}

	var tmpl World
	if err := m.store.Read(m.worldTemplatePath(cfg), &tmpl); err != nil {
		return err
	}

	switch cfg.State.Model {
	case config.ModelShared:
		now := time.Now()
		tmpl.Metadata.Version = summary.CurrentVersion + 1
		tmpl.Metadata.LastModified = now
		if tmpl.Metadata.CreatedAt.IsZero() {
			tmpl.Metadata.CreatedAt = now
		}
		if err := m.store.Write(m.sharedWorldPath(cfg), &tmpl, nil); err != nil {
			return err
		}
	default:
		// Isolated worlds are simply removed; the next
		// EnsurePlayerInitialized recreates each from the template.
		for _, p := range worldPaths {
			if err := m.store.Delete(p); err != nil {
				return err
			}
		}
	}

	summary.Performed = true
	return nil
}

func (m *Manager) backupDocument(docPath, backupPath string) error {
	var raw json.RawMessage
	if err := m.store.Read(docPath, &raw); err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil
		}
		return err
	}
	dest := path.Join(backupPath, path.Base(docPath))
	return m.store.Write(dest, raw, nil)
}

func (m *Manager) findPlayerViewPaths(experienceID string) ([]string, error) {
	all, err := m.store.List("players")
	if err != nil {
		return nil, err
	}
	suffix := "/" + experienceID + "/view.json"
	var matches []string
	for _, p := range all {
		if strings.HasSuffix(p, suffix) {
			matches = append(matches, p)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

func (m *Manager) findWorldPaths(cfg *config.ExperienceConfig) ([]string, error) {
	if cfg.State.Model == config.ModelShared {
		p := m.sharedWorldPath(cfg)
		if m.store.Exists(p) {
			return []string{p}, nil
		}
		return nil, nil
	}

	all, err := m.store.List(fmt.Sprintf("experiences/%s/players", cfg.ID))
	if err != nil {
		return nil, err
	}
	var matches []string
	for _, p := range all {
		if strings.HasSuffix(p, "/world.json") {
			matches = append(matches, p)
		}
	}
	sort.Strings(matches)
	return matches, nil
}
