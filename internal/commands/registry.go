// Package commands implements the command registry: at experience
// load it scans game-logic/ and admin-logic/ for markdown command files,
// parses each one's YAML frontmatter, and builds a dispatch table mapping
// both canonical names and aliases to a CommandRecord.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/logging"
)

// frontmatter is the YAML header every command markdown file carries.
type frontmatter struct {
	Command           string   `yaml:"command"`
	Aliases           []string `yaml:"aliases"`
	Description       string   `yaml:"description"`
	RequiresLocation  bool     `yaml:"requires_location"`
	RequiresTarget    bool     `yaml:"requires_target"`
	StateModelSupport []string `yaml:"state_model_support"`
	RequiresAdmin     bool     `yaml:"requires_admin"`
}

// CommandRecord is a parsed, registered markdown command.
type CommandRecord struct {
	Command           string
	Aliases           []string
	Description       string
	RequiresLocation  bool
	RequiresTarget    bool
	StateModelSupport []string
	RequiresAdmin     bool
	// Admin is true when the file lives under admin-logic/, independent
	// of RequiresAdmin; the frontmatter flag is authoritative for access
	// control, this just records provenance.
	Admin bool
	Body  string
	Path  string
}

// SupportsModel reports whether the command declares support for a given
// state model; an empty StateModelSupport list means "all models".
func (c *CommandRecord) SupportsModel(model string) bool {
	if len(c.StateModelSupport) == 0 {
		return true
	}
	for _, m := range c.StateModelSupport {
		if m == model {
			return true
		}
	}
	return false
}

type experienceIndex struct {
	byName map[string]*CommandRecord
	all    []*CommandRecord
}

// Registry scans and caches command records per experience.
type Registry struct {
	root string
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*experienceIndex
}

// NewRegistry returns a Registry rooted at the content directory
// containing experiences/<id>/{game-logic,admin-logic}.
func NewRegistry(root string, logger *slog.Logger) *Registry {
	return &Registry{
		root:   root,
		logger: logging.WithComponent(logger, "commands"),
		cache:  make(map[string]*experienceIndex),
	}
}

// Resolve maps an invocation token (a command name or alias, case- and
// leading-@-insensitive) to its record. It returns apperr.UnknownCommand
// if the experience has no matching command.
func (r *Registry) Resolve(experienceID, invocation string) (*CommandRecord, error) {
	idx, err := r.index(experienceID)
	if err != nil {
		return nil, err
	}
	key := normalize(invocation)
	rec, ok := idx.byName[key]
	if !ok {
		return nil, apperr.New(apperr.UnknownCommand, fmt.Sprintf("no command matches %q", invocation))
	}
	return rec, nil
}

// ResolveMessage scans a free-text message token by token for the first
// registered command name or alias, so a natural-language invocation whose
// leading word is not itself the command ("I want to inspect the fountain")
// still reaches its markdown rules.
func (r *Registry) ResolveMessage(experienceID, message string) (*CommandRecord, error) {
	idx, err := r.index(experienceID)
	if err != nil {
		return nil, err
	}
	for _, field := range strings.Fields(message) {
		if rec, ok := idx.byName[normalize(field)]; ok {
			return rec, nil
		}
	}
	return nil, apperr.New(apperr.UnknownCommand, fmt.Sprintf("no command matches %q", message))
}

// List returns every registered command for an experience.
func (r *Registry) List(experienceID string) ([]*CommandRecord, error) {
	idx, err := r.index(experienceID)
	if err != nil {
		return nil, err
	}
	return idx.all, nil
}

// Reload invalidates the cached index for an experience; the next Resolve
// or List re-scans its command directories.
func (r *Registry) Reload(experienceID string) {
	r.mu.Lock()
	delete(r.cache, experienceID)
	r.mu.Unlock()
}

func (r *Registry) index(experienceID string) (*experienceIndex, error) {
	r.mu.RLock()
	idx, ok := r.cache[experienceID]
	r.mu.RUnlock()
	if ok {
		return idx, nil
	}

	idx, err := r.scan(experienceID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[experienceID] = idx
	r.mu.Unlock()
	return idx, nil
}

func (r *Registry) scan(experienceID string) (*experienceIndex, error) {
	idx := &experienceIndex{byName: make(map[string]*CommandRecord)}

	dirs := []struct {
		rel   string
		admin bool
	}{
		{"game-logic", false},
		{"admin-logic", true},
	}

	for _, d := range dirs {
		dirPath := filepath.Join(r.root, "experiences", experienceID, d.rel)
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, apperr.Wrap(apperr.ConfigInvalid, fmt.Sprintf("scanning %q", dirPath), err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			path := filepath.Join(dirPath, entry.Name())
			rec, err := r.parseFile(path, d.admin)
			if err != nil {
				return nil, err
			}
			if err := idx.register(rec); err != nil {
				return nil, err
			}
		}
	}

	return idx, nil
}

func (idx *experienceIndex) register(rec *CommandRecord) error {
	names := append([]string{rec.Command}, rec.Aliases...)
	for _, name := range names {
		key := normalize(name)
		if existing, ok := idx.byName[key]; ok {
			return apperr.New(apperr.ConfigInvalid,
				fmt.Sprintf("command name/alias %q is registered twice (%q and %q)", name, existing.Path, rec.Path))
		}
		idx.byName[key] = rec
	}
	idx.all = append(idx.all, rec)
	return nil
}

func (r *Registry) parseFile(path string, admin bool) (*CommandRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigInvalid, fmt.Sprintf("reading %q", path), err)
	}

	fm, body, err := splitFrontmatter(string(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigInvalid, fmt.Sprintf("parsing frontmatter in %q", path), err)
	}
	if fm.Command == "" {
		return nil, apperr.New(apperr.ConfigInvalid, fmt.Sprintf("%q has no 'command' in its frontmatter", path))
	}

	return &CommandRecord{
		Command:           fm.Command,
		Aliases:           fm.Aliases,
		Description:       fm.Description,
		RequiresLocation:  fm.RequiresLocation,
		RequiresTarget:    fm.RequiresTarget,
		StateModelSupport: fm.StateModelSupport,
		RequiresAdmin:     fm.RequiresAdmin,
		Admin:             admin,
		Body:              body,
		Path:              path,
	}, nil
}

// splitFrontmatter parses a "---\n<yaml>\n---\n<body>" document.
func splitFrontmatter(content string) (frontmatter, string, error) {
	var fm frontmatter
	const delim = "---"

	trimmed := strings.TrimLeft(content, "\n")
	if !strings.HasPrefix(trimmed, delim) {
		return fm, content, fmt.Errorf("missing leading %q frontmatter delimiter", delim)
	}
	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx == -1 {
		return fm, content, fmt.Errorf("missing closing %q frontmatter delimiter", delim)
	}
	yamlBlock := rest[:idx]
	body := strings.TrimLeft(rest[idx+len(delim)+1:], "\n")

	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return fm, content, err
	}
	return fm, body, nil
}

// normalize makes invocation matching case-insensitive and tolerant of a
// leading admin '@' marker, since admin status is tracked separately from
// the name used to look the command up.
func normalize(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))
}
