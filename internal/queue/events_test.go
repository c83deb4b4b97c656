package queue

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/merge-warden/internal/core"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFanOut(t *testing.T) {
	n := NewNotifier(discardLogger())

	ch1, unsub1 := n.Subscribe()
	ch2, unsub2 := n.Subscribe()
	defer unsub1()
	defer unsub2()

	job := makeJob("job-1", 42, core.JobStatusPending, time.Now())
	n.Publish(Event{Type: EventJobAdded, Job: job, Timestamp: time.Now()})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			assert.Equal(t, EventJobAdded, e.Type)
			assert.Equal(t, "job-1", e.Job.ID)
		default:
			t.Fatal("expected a buffered event")
		}
	}
}

func TestNotifierDropsWhenSubscriberFull(t *testing.T) {
	n := NewNotifier(discardLogger())

	ch, unsub := n.Subscribe()
	defer unsub()

	job := makeJob("job-1", 42, core.JobStatusPending, time.Now())
	// Overfill the subscriber buffer; Publish must never block.
	for i := 0; i < 100; i++ {
		n.Publish(Event{Type: EventJobAdded, Job: job, Timestamp: time.Now()})
	}

	assert.Equal(t, 64, len(ch))
}

func TestNotifierUnsubscribeClosesChannel(t *testing.T) {
	n := NewNotifier(discardLogger())

	ch, unsub := n.Subscribe()
	unsub()
	// A second call must be a no-op, not a double close.
	unsub()

	_, open := <-ch
	require.False(t, open)

	// Publishing after unsubscribe must not panic.
	n.Publish(Event{Type: EventJobFailed, Job: makeJob("job-1", 1, core.JobStatusFailed, time.Now()), Timestamp: time.Now()})
}
