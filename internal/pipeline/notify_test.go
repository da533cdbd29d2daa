package pipeline

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_DeliversPerClaim(t *testing.T) {
	b := NewBroadcaster()
	claimA, claimB := uuid.New(), uuid.New()

	chA, cancelA := b.Subscribe(claimA)
	chB, cancelB := b.Subscribe(claimB)
	defer cancelB()

	b.Notify(ProgressEvent{Type: EventStageStarted, ClaimID: claimA})

	select {
	case ev := <-chA:
		assert.Equal(t, EventStageStarted, ev.Type)
	default:
		t.Fatal("expected an event for claim A")
	}
	select {
	case ev := <-chB:
		t.Fatalf("unexpected event for claim B: %+v", ev)
	default:
	}

	cancelA()
	cancelA()
	_, open := <-chA
	assert.False(t, open)
	assert.Zero(t, b.Subscribers(claimA))
	assert.Equal(t, 1, b.Subscribers(claimB))
}

func TestBroadcaster_SlowSubscriberIsDropped(t *testing.T) {
	b := NewBroadcaster()
	claimID := uuid.New()
	slow, cancelSlow := b.Subscribe(claimID)
	fast, cancelFast := b.Subscribe(claimID)
	defer cancelFast()

	for i := 0; i < subscriberBuffer; i++ {
		b.Notify(ProgressEvent{Type: EventStageCompleted, ClaimID: claimID, StageIndex: i})
		<-fast
	}
	require.Len(t, slow, subscriberBuffer)
	assert.Equal(t, 2, b.Subscribers(claimID))

	// The terminal event does not fit, so the slow subscriber is closed
	// rather than left waiting for it.
	b.Notify(ProgressEvent{Type: EventRunCompleted, ClaimID: claimID})
	assert.Equal(t, 1, b.Subscribers(claimID))
	assert.True(t, (<-fast).Terminal())

	received := 0
	for range slow {
		received++
	}
	assert.Equal(t, subscriberBuffer, received)

	cancelSlow()
	assert.Equal(t, 1, b.Subscribers(claimID), "cancelling a dropped subscriber is harmless")
}
