package gateway

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeonia-ai/gaia-runtime/internal/broadcast"
	"github.com/aeonia-ai/gaia-runtime/internal/history"
)

// TestSessionResyncIfNeededReplaysSnapshotWhenDesynced exercises the
// desync policy end to end: a subscriber whose bounded queue drops an
// update must be forced back in sync on its next interaction.
func TestSessionResyncIfNeededReplaysSnapshotWhenDesynced(t *testing.T) {
	d, caster := newTestDispatcher(t)

	sub, err := caster.Subscribe(broadcast.ExperienceSubject(testExperienceID))
	require.NoError(t, err)
	defer sub.Close()

	// Flood the subscription's bounded queue well past capacity so a
	// delivery drops and the subscriber is marked desynced.
	for i := 0; i < 64; i++ {
		require.NoError(t, caster.Publish(broadcast.ExperienceSubject(testExperienceID), &broadcast.WorldUpdate{}))
	}
	require.True(t, sub.Desynced())

	gw := &Gateway{manager: d.manager, logger: slog.Default()}
	sess := &session{
		gateway:      gw,
		logger:       slog.Default(),
		playerID:     testPlayerID,
		experienceID: testExperienceID,
		history:      history.New(5),
		sub:          sub,
		send:         make(chan serverMessage, 4),
	}

	sess.resyncIfNeeded()

	select {
	case msg := <-sess.send:
		assert.Equal(t, "welcome", msg.Type)
		assert.Equal(t, testExperienceID, msg.Experience)
		require.NotNil(t, msg.World)
		require.NotNil(t, msg.View)
	default:
		t.Fatal("expected resyncIfNeeded to replay a welcome-shaped snapshot")
	}
	assert.False(t, sub.Desynced(), "resyncIfNeeded must clear the desynced flag")
}

// TestSessionResyncIfNeededNoOpWhenInSync confirms a healthy subscription
// never triggers an extra snapshot send.
func TestSessionResyncIfNeededNoOpWhenInSync(t *testing.T) {
	d, caster := newTestDispatcher(t)

	sub, err := caster.Subscribe(broadcast.ExperienceSubject(testExperienceID))
	require.NoError(t, err)
	defer sub.Close()

	gw := &Gateway{manager: d.manager, logger: slog.Default()}
	sess := &session{
		gateway:      gw,
		logger:       slog.Default(),
		playerID:     testPlayerID,
		experienceID: testExperienceID,
		history:      history.New(5),
		sub:          sub,
		send:         make(chan serverMessage, 4),
	}

	sess.resyncIfNeeded()

	select {
	case msg := <-sess.send:
		t.Fatalf("unexpected message sent while in sync: %+v", msg)
	default:
	}
}
