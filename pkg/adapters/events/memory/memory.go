package memory

import (
	"context"
	"sync"

	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
)

// InMemorySink implements EventSink by recording published events.
// This is for testing purposes only.
type InMemorySink struct {
	mu     sync.Mutex
	events []orchestrator.Event
	closed bool
}

// NewInMemorySink creates a new in-memory event sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

// Publish records an event.
func (s *InMemorySink) Publish(ctx context.Context, event orchestrator.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (s *InMemorySink) Events() []orchestrator.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orchestrator.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Close marks the sink closed; later publishes are dropped.
func (s *InMemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
