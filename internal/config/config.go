// Package config loads and validates per-experience configuration
// (config.json): parse once, validate the whole document, cache by key,
// reload on demand.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
)

// StateModel is the experience's state-sharing strategy.
type StateModel string

const (
	ModelShared   StateModel = "shared"
	ModelIsolated StateModel = "isolated"
)

// StateConfig controls locking, optimistic versioning and lock timeouts for
// the experience's world document.
type StateConfig struct {
	Model                StateModel `json:"model"`
	LockingEnabled       bool       `json:"locking_enabled"`
	OptimisticVersioning bool       `json:"optimistic_versioning"`
	LockTimeoutMS        int        `json:"lock_timeout_ms"`
}

// MultiplayerConfig gates whether players share a single world.
type MultiplayerConfig struct {
	Enabled bool `json:"enabled"`
}

// BootstrapConfig controls first-contact player view creation.
type BootstrapConfig struct {
	PlayerStartingLocation  string   `json:"player_starting_location"`
	PlayerStartingInventory []string `json:"player_starting_inventory"`
	CopyTemplateForIsolated bool     `json:"copy_template_for_isolated"`
}

// ExperienceConfig is the parsed, validated contents of an experience's
// config.json. It is immutable for the lifetime of the process unless
// Reload is explicitly called.
type ExperienceConfig struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	State         StateConfig       `json:"state"`
	Multiplayer   MultiplayerConfig `json:"multiplayer"`
	Bootstrap     BootstrapConfig   `json:"bootstrap"`
	// Capabilities is a free-form flag bag (gps_based, ar_enabled, ...);
	// kept open rather than a closed struct since new flags land here
	// without ever touching this package.
	Capabilities map[string]any `json:"capabilities"`
}

const defaultLockTimeoutMS = 5000

// Loader parses config.json per experience on first reference and caches
// the result until an explicit Reload.
type Loader struct {
	root string

	mu    sync.RWMutex
	cache map[string]*ExperienceConfig
}

// NewLoader returns a Loader rooted at the content directory containing
// experiences/<id>/config.json.
func NewLoader(root string) *Loader {
	return &Loader{
		root:  root,
		cache: make(map[string]*ExperienceConfig),
	}
}

func (l *Loader) configPath(experienceID string) string {
	return filepath.Join(l.root, "experiences", experienceID, "config.json")
}

// Load returns the cached config for experienceID, parsing and validating
// config.json on first reference. An invalid config refuses only this
// experience; other experiences remain serviceable.
func (l *Loader) Load(experienceID string) (*ExperienceConfig, error) {
	l.mu.RLock()
	cfg, ok := l.cache[experienceID]
	l.mu.RUnlock()
	if ok {
		return cfg, nil
	}
	return l.Reload(experienceID)
}

// Reload forces a fresh parse and validation of config.json, replacing any
// cached value for experienceID.
func (l *Loader) Reload(experienceID string) (*ExperienceConfig, error) {
	path := l.configPath(experienceID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.NotFound, fmt.Sprintf("experience %q has no config.json", experienceID))
		}
		return nil, apperr.Wrap(apperr.ConfigInvalid, fmt.Sprintf("reading config for %q", experienceID), err)
	}

	var cfg ExperienceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, apperr.Wrap(apperr.ConfigInvalid, fmt.Sprintf("parsing config for %q", experienceID), err)
	}
	if cfg.State.LockTimeoutMS == 0 {
		cfg.State.LockTimeoutMS = defaultLockTimeoutMS
	}
	if cfg.ID == "" {
		cfg.ID = experienceID
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[experienceID] = &cfg
	l.mu.Unlock()

	return &cfg, nil
}

// Invalidate drops any cached config for experienceID without reloading it.
func (l *Loader) Invalidate(experienceID string) {
	l.mu.Lock()
	delete(l.cache, experienceID)
	l.mu.Unlock()
}

// fieldErr is a validation failure tied to one field path, so callers can
// report exactly which part of config.json is wrong.
type fieldErr struct {
	field string
	msg   string
}

func (f fieldErr) String() string {
	return fmt.Sprintf("%s: %s", f.field, f.msg)
}

// Validate checks the required fields, enum values, and the
// multiplayer.enabled <-> state.model=shared cross-field rule. It returns a
// ConfigInvalid apperr.Error naming every failing field path, not just the
// first one, so a bad config.json can be fixed in one pass.
func Validate(cfg *ExperienceConfig) error {
	var problems []fieldErr

	if cfg.ID == "" {
		problems = append(problems, fieldErr{"id", "must not be empty"})
	}
	if cfg.Name == "" {
		problems = append(problems, fieldErr{"name", "must not be empty"})
	}

	switch cfg.State.Model {
	case ModelShared, ModelIsolated:
	case "":
		problems = append(problems, fieldErr{"state.model", "required"})
	default:
		problems = append(problems, fieldErr{"state.model", fmt.Sprintf("must be %q or %q, got %q", ModelShared, ModelIsolated, cfg.State.Model)})
	}

	if cfg.State.LockTimeoutMS < 0 {
		problems = append(problems, fieldErr{"state.lock_timeout_ms", "must not be negative"})
	}

	if cfg.Multiplayer.Enabled != (cfg.State.Model == ModelShared) {
		problems = append(problems, fieldErr{"multiplayer.enabled", "must be true if and only if state.model is \"shared\""})
	}

	if cfg.State.Model == ModelIsolated && cfg.Bootstrap.PlayerStartingLocation == "" {
		problems = append(problems, fieldErr{"bootstrap.player_starting_location", "required for isolated experiences"})
	}

	if len(problems) == 0 {
		return nil
	}

	msg := fmt.Sprintf("%d field(s) invalid in config for %q:", len(problems), cfg.ID)
	for _, p := range problems {
		msg += " [" + p.String() + "]"
	}
	return apperr.New(apperr.ConfigInvalid, msg)
}
