package notifications

import (
	"sync"
	"time"
)

// Event identifies a typed pipeline event.
type Event string

const (
	EventJobAdded     Event = "job_added"
	EventJobStarted   Event = "job_started"
	EventJobProgress  Event = "job_progress"
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventJobRetried   Event = "job_retried"
	EventJobCancelled Event = "job_cancelled"

	EventWorkflowProgress  Event = "workflow_progress"
	EventWorkflowCompleted Event = "workflow_completed"
	EventWorkflowError     Event = "workflow_error"
)

// Payload carries event-specific data.
type Payload map[string]any

// Message is one published event together with its routing metadata.
type Message struct {
	ProjectID string
	Event     Event
	Payload   Payload
	At        time.Time
}

// Subscription is a handle to a bus subscriber. Cancel releases it; the
// channel is closed afterwards.
type Subscription struct {
	ch     chan Message
	cancel func()
	once   sync.Once
}

// C returns the subscriber's message channel.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Cancel removes the subscription from the bus and closes the channel.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Bus is an in-process publish/subscribe hub for pipeline events.
//
// Delivery is fire-and-forget: a slow or abandoned subscriber drops its
// oldest buffered message rather than stalling the publisher. Consumers
// must tolerate missing intermediate progress events.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*Subscription
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*Subscription)}
}

// Subscribe registers a subscriber with the given channel buffer size.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	sub := &Subscription{ch: make(chan Message, buffer)}
	sub.cancel = func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		close(sub.ch)
	}
	b.subs[id] = sub
	return sub
}

// Publish fans a message out to every subscriber without blocking.
func (b *Bus) Publish(projectID string, event Event, payload Payload) {
	msg := Message{
		ProjectID: projectID,
		Event:     event,
		Payload:   payload,
		At:        time.Now().UTC(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- msg:
		default:
			// Buffer full: evict the oldest message so recent state wins.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
}

// SubscriberCount reports active subscriptions, used by health checks.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
