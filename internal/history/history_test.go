package history

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultsNonPositiveSize(t *testing.T) {
	h := New(0)
	assert.Empty(t, h.Entries())
	for i := 0; i < 15; i++ {
		h.AddPlayerAction("go north")
	}
	assert.Len(t, h.Entries(), 10)
}

func TestAddPlayerActionAndNarratorResponse(t *testing.T) {
	h := New(5)
	h.AddPlayerAction("look")
	h.AddNarratorResponse("You see a clearing.")

	entries := h.Entries()
	require := assert.New(t)
	require.Len(entries, 2)
	require.Equal("Player: look", entries[0])
	require.Equal("Narrator: You see a clearing.", entries[1])
}

func TestAddErrorRecordsMessage(t *testing.T) {
	h := New(5)
	h.AddError(errors.New("boom"))
	assert.Equal(t, []string{"Error: boom"}, h.Entries())
}

func TestRingDropsOldestBeyondMaxSize(t *testing.T) {
	h := New(3)
	h.AddPlayerAction("one")
	h.AddPlayerAction("two")
	h.AddPlayerAction("three")
	h.AddPlayerAction("four")

	entries := h.Entries()
	assert.Equal(t, []string{"Player: two", "Player: three", "Player: four"}, entries)
}

func TestEntriesReturnsDefensiveCopy(t *testing.T) {
	h := New(5)
	h.AddPlayerAction("look")

	entries := h.Entries()
	entries[0] = "tampered"

	assert.Equal(t, "Player: look", h.Entries()[0])
}

func TestBuildContextEmptyWhenNoExchanges(t *testing.T) {
	h := New(5)
	assert.Empty(t, h.BuildContext())
}

func TestBuildContextRendersHeaderAndExchanges(t *testing.T) {
	h := New(5)
	h.AddPlayerAction("look")
	h.AddNarratorResponse("A clearing.")

	ctx := h.BuildContext()
	assert.Contains(t, ctx, "RECENT CONVERSATION:")
	assert.Contains(t, ctx, "Player: look\n")
	assert.Contains(t, ctx, "Narrator: A clearing.\n")
}
