package queue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sevigo/merge-warden/internal/core"
)

// EventType identifies a job lifecycle notification.
type EventType string

const (
	EventJobAdded     EventType = "job_added"
	EventJobStarted   EventType = "job_started"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
)

// Event is a lifecycle notification carrying a snapshot of the job at the
// time of the transition. Events are observational: consumers must not assume
// delivery, ordering relative to store state, or completeness.
type Event struct {
	Type      EventType
	Job       *core.Job
	Timestamp time.Time
}

// Notifier fans lifecycle events out to subscribers. Publishing never blocks:
// if a subscriber's channel is full the event is dropped, so a slow consumer
// can never stall the scheduler.
type Notifier struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
}

// NewNotifier creates a notifier with no subscribers.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		subs:   make(map[int]chan Event),
	}
}

// Subscribe returns a channel of lifecycle events and a function that stops
// the subscription and closes the channel.
func (n *Notifier) Subscribe() (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan Event, 64)
	n.subs[id] = ch

	unsub := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
	return ch, unsub
}

// Publish delivers the event to every subscriber that has buffer capacity.
func (n *Notifier) Publish(e Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subs {
		select {
		case ch <- e:
		default:
			n.logger.Warn("lifecycle event channel full, dropping event",
				"event", e.Type, "job_id", e.Job.ID)
		}
	}
}
