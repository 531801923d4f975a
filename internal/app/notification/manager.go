// Package notification provides the notification manager for broadcasting library events.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Kind is the type of an event.
type Kind string

const (
	SyncStarted  Kind = "SYNC_STARTED"
	SyncFinished Kind = "SYNC_FINISHED"
	SyncSkipped  Kind = "SYNC_SKIPPED" // category already running
	SyncFailed   Kind = "SYNC_FAILED"
	Scrobbled    Kind = "SCROBBLED"
)

// Event is a library or playback event.
type Event struct {
	SequenceNo uint64
	RunID      string // groups events of one sync pass
	Kind       Kind
	Category   string // sync category, empty for playback events
	Pulled     int    // remote entries applied locally
	Removed    int    // local entries reconciled away
	Pushed     int    // local changes pushed to the remote
	Err        string
	At         time.Time
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(Event) error
}

// StreamFunc adapts a function to a Stream.
type StreamFunc func(Event) error

// Send calls f(ev).
func (f StreamFunc) Send(ev Event) error { return f(ev) }

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	sendTimeout   time.Duration
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   500 * time.Millisecond,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast stamps ev with the next sequence number and sends it to all subscribers.
// Each send runs in its own goroutine and is abandoned after the send timeout.
// A nil Manager discards events.
func (m *Manager) Broadcast(ev Event) {
	if m == nil {
		return
	}

	m.sequenceNoMu.Lock()
	m.sequenceNo++
	ev.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(ev)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Err(err).Str("subscription", s.id).Msg("Notification send failed")
				}
			case <-ctx.Done():
				zlog.Debug().Str("subscription", s.id).Msg("Notification send timed out")
			}
		}(sub)
	}

	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}

// NewRunID returns a fresh ID for grouping the events of one sync pass.
func NewRunID() string {
	return uuid.NewString()
}
