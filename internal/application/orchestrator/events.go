package orchestrator

import (
	"time"

	"go.uber.org/zap"
)

// EventType discriminates orchestrator lifecycle events.
type EventType string

const (
	EventNodeReady         EventType = "node:ready"
	EventNodeRetry         EventType = "node:retry"
	EventNodeSkipped       EventType = "node:skipped"
	EventWorkflowProgress  EventType = "workflow:progress"
	EventWorkflowCompleted EventType = "workflow:completed"
	EventWorkflowFailed    EventType = "workflow:failed"
)

// Event carries only the data needed by observers for its type.
type Event struct {
	Type        EventType     `json:"type"`
	ExecutionID string        `json:"execution_id"`
	NodeID      string        `json:"node_id,omitempty"`
	Node        *DAGNode      `json:"node,omitempty"`
	RetryCount  int           `json:"retry_count,omitempty"`
	Delay       time.Duration `json:"delay_ms,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Execution   *Execution    `json:"execution,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Listener receives orchestrator events. Listeners are invoked synchronously
// in registration order while the orchestrator holds its lock; they must not
// call back into the orchestrator from the same goroutine.
type Listener func(Event)

type listenerEntry struct {
	id int
	fn Listener
}

// emitter is an observer list with stable handles. A panicking listener is
// recovered and logged so it cannot break other listeners or the state
// machine.
type emitter struct {
	listeners []listenerEntry
	nextID    int
	logger    *zap.Logger
}

// subscribe registers a listener and returns an unsubscribe function.
func (e *emitter) subscribe(fn Listener) func() {
	id := e.nextID
	e.nextID++
	e.listeners = append(e.listeners, listenerEntry{id: id, fn: fn})

	return func() {
		for i, entry := range e.listeners {
			if entry.id == id {
				e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// emit delivers the event to every listener in registration order.
func (e *emitter) emit(ev Event) {
	ev.Timestamp = time.Now()
	for _, entry := range e.listeners {
		e.deliver(entry.fn, ev)
	}
}

func (e *emitter) deliver(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event listener panicked",
				zap.String("event_type", string(ev.Type)),
				zap.Any("panic", r))
		}
	}()
	fn(ev)
}
