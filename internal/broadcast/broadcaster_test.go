package broadcast

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroadcasterDeliversToSubscriber(t *testing.T) {
	b := NewMemoryBroadcaster(slog.Default())
	sub, err := b.Subscribe("exp.west-of-house")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish("exp.west-of-house", &WorldUpdate{Experience: "west-of-house", Version: 2}))

	select {
	case update := <-sub.Updates():
		assert.Equal(t, 2, update.Version)
	case <-time.After(time.Second):
		t.Fatal("update was not delivered")
	}
}

func TestMemoryBroadcasterDoesNotCrossSubjects(t *testing.T) {
	b := NewMemoryBroadcaster(slog.Default())
	subA, err := b.Subscribe("a")
	require.NoError(t, err)
	defer subA.Close()
	subB, err := b.Subscribe("b")
	require.NoError(t, err)
	defer subB.Close()

	require.NoError(t, b.Publish("a", &WorldUpdate{Version: 1}))

	select {
	case <-subA.Updates():
	case <-time.After(time.Second):
		t.Fatal("subscriber a should have received the update")
	}

	select {
	case <-subB.Updates():
		t.Fatal("subscriber b should not have received a's update")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionMarksDesyncedOnFullQueue(t *testing.T) {
	b := NewMemoryBroadcaster(slog.Default())
	sub, err := b.Subscribe("busy")
	require.NoError(t, err)
	defer sub.Close()

	assert.False(t, sub.Desynced())

	for i := 0; i < subscriberQueueDepth+5; i++ {
		require.NoError(t, b.Publish("busy", &WorldUpdate{Version: i}))
	}

	assert.True(t, sub.Desynced())
	sub.ForceResync()
	assert.False(t, sub.Desynced())
}

func TestCloseTerminatesUpdatesChannel(t *testing.T) {
	b := NewMemoryBroadcaster(slog.Default())
	sub, err := b.Subscribe("subject")
	require.NoError(t, err)

	sub.Close()
	sub.Close() // must not panic

	_, ok := <-sub.Updates()
	assert.False(t, ok)
}

func TestPublishAfterSubscriptionCloseIsHarmless(t *testing.T) {
	b := NewMemoryBroadcaster(slog.Default())
	sub, err := b.Subscribe("subject")
	require.NoError(t, err)

	sub.Close()
	require.NoError(t, b.Publish("subject", &WorldUpdate{Version: 1}))
}

func TestMarkDesyncedForcesResync(t *testing.T) {
	b := NewMemoryBroadcaster(slog.Default())
	sub, err := b.Subscribe("subject")
	require.NoError(t, err)
	defer sub.Close()

	sub.MarkDesynced()
	assert.True(t, sub.Desynced())
	sub.ForceResync()
	assert.False(t, sub.Desynced())
}

func TestSubjectNamingHelpers(t *testing.T) {
	assert.Equal(t, "experience.west-of-house.updates", ExperienceSubject("west-of-house"))
	assert.Equal(t, "experience.west-of-house.player.p1.updates", PlayerSubject("west-of-house", "p1"))
}
