package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressHub_DeliversToRunSubscribers(t *testing.T) {
	hub := NewProgressHub()

	events, cancel := hub.Subscribe("run-1")
	defer cancel()
	otherEvents, otherCancel := hub.Subscribe("run-2")
	defer otherCancel()

	hub.Publish(ProgressEvent{RunID: "run-1", Status: StatusRunning, DayIndex: 3, TotalDays: 10})

	select {
	case ev := <-events:
		assert.Equal(t, "run-1", ev.RunID)
		assert.Equal(t, StatusRunning, ev.Status)
		assert.Equal(t, 3, ev.DayIndex)
	default:
		t.Fatal("expected a buffered event for run-1")
	}

	select {
	case ev := <-otherEvents:
		t.Fatalf("run-2 subscriber received foreign event %+v", ev)
	default:
	}
}

func TestProgressHub_FanOut(t *testing.T) {
	hub := NewProgressHub()

	a, cancelA := hub.Subscribe("run-1")
	defer cancelA()
	b, cancelB := hub.Subscribe("run-1")
	defer cancelB()

	hub.Publish(ProgressEvent{RunID: "run-1", Status: StatusCompleted})

	require.Len(t, a, 1)
	require.Len(t, b, 1)
}

func TestProgressHub_CancelClosesChannel(t *testing.T) {
	hub := NewProgressHub()

	events, cancel := hub.Subscribe("run-1")
	cancel()

	_, open := <-events
	assert.False(t, open)

	// Publishing after cancel must not panic or deliver.
	hub.Publish(ProgressEvent{RunID: "run-1", Status: StatusRunning})
}

func TestProgressHub_PublishNeverBlocks(t *testing.T) {
	hub := NewProgressHub()

	// Nobody is watching run-1 at all.
	hub.Publish(ProgressEvent{RunID: "run-1", Status: StatusRunning})

	// A full subscriber buffer drops events instead of blocking.
	events, cancel := hub.Subscribe("run-2")
	defer cancel()
	for i := 0; i < 200; i++ {
		hub.Publish(ProgressEvent{RunID: "run-2", Status: StatusRunning, DayIndex: i})
	}
	assert.Len(t, events, 64)
}
