package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
)

func writeCommand(t *testing.T, root, experienceID, dir, filename, body string) {
	t.Helper()
	full := filepath.Join(root, "experiences", experienceID, dir)
	require.NoError(t, os.MkdirAll(full, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(full, filename), []byte(body), 0o644))
}

const pushCommand = `---
command: push
aliases: [shove]
description: Push something.
state_model_support: [shared, isolated]
---
Push the target described by the player.
`

const resetCommand = `---
command: reset
requires_admin: true
---
Reset the experience to its template.
`

func TestResolveByCanonicalNameAndAlias(t *testing.T) {
	root := t.TempDir()
	writeCommand(t, root, "exp", "game-logic", "push.md", pushCommand)

	r := NewRegistry(root, nil)
	rec, err := r.Resolve("exp", "push")
	require.NoError(t, err)
	assert.Equal(t, "push", rec.Command)

	alias, err := r.Resolve("exp", "SHOVE")
	require.NoError(t, err)
	assert.Same(t, rec, alias)
}

func TestResolveUnknownCommandFails(t *testing.T) {
	root := t.TempDir()
	writeCommand(t, root, "exp", "game-logic", "push.md", pushCommand)

	r := NewRegistry(root, nil)
	_, err := r.Resolve("exp", "fly")
	require.Error(t, err)
	assert.Equal(t, apperr.UnknownCommand, apperr.KindOf(err))
}

func TestResolveMessageFindsAliasMidSentence(t *testing.T) {
	root := t.TempDir()
	writeCommand(t, root, "exp", "game-logic", "examine.md", `---
command: examine
aliases: [inspect, study]
---
Describe the named target in detail.
`)

	r := NewRegistry(root, nil)
	rec, err := r.ResolveMessage("exp", "I want to carefully inspect the fountain")
	require.NoError(t, err)
	assert.Equal(t, "examine", rec.Command)

	_, err = r.ResolveMessage("exp", "do a little dance")
	require.Error(t, err)
	assert.Equal(t, apperr.UnknownCommand, apperr.KindOf(err))
}

func TestAdminDirectoryMarksRecordsAdminAndRequiresAdminFlagIsAuthoritative(t *testing.T) {
	root := t.TempDir()
	writeCommand(t, root, "exp", "admin-logic", "reset.md", resetCommand)

	r := NewRegistry(root, nil)
	rec, err := r.Resolve("exp", "reset")
	require.NoError(t, err)
	assert.True(t, rec.Admin)
	assert.True(t, rec.RequiresAdmin)
}

func TestDuplicateNameAcrossFilesFailsToScan(t *testing.T) {
	root := t.TempDir()
	writeCommand(t, root, "exp", "game-logic", "push.md", pushCommand)
	writeCommand(t, root, "exp", "game-logic", "shove.md", `---
command: shove
---
Body.
`)

	r := NewRegistry(root, nil)
	_, err := r.Resolve("exp", "push")
	require.Error(t, err)
	assert.Equal(t, apperr.ConfigInvalid, apperr.KindOf(err))
}

func TestSupportsModelEmptyListMeansAll(t *testing.T) {
	rec := &CommandRecord{}
	assert.True(t, rec.SupportsModel("shared"))
	assert.True(t, rec.SupportsModel("isolated"))
}

func TestSupportsModelRestrictsToListed(t *testing.T) {
	rec := &CommandRecord{StateModelSupport: []string{"shared"}}
	assert.True(t, rec.SupportsModel("shared"))
	assert.False(t, rec.SupportsModel("isolated"))
}

func TestReloadRescans(t *testing.T) {
	root := t.TempDir()
	writeCommand(t, root, "exp", "game-logic", "push.md", pushCommand)

	r := NewRegistry(root, nil)
	_, err := r.Resolve("exp", "push")
	require.NoError(t, err)

	writeCommand(t, root, "exp", "game-logic", "pull.md", `---
command: pull
---
Pull it.
`)
	r.Reload("exp")
	_, err = r.Resolve("exp", "pull")
	require.NoError(t, err)
}
