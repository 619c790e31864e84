// Package ports defines the interfaces between the orchestration core and
// its adapters (storage, event sinks, metrics).
package ports

import (
	"context"
	"time"

	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
)

// DefinitionStore persists workflow definitions. Execution state is never
// persisted; it lives only in the orchestrator instance.
type DefinitionStore interface {
	Save(ctx context.Context, def *orchestrator.WorkflowDefinition) error
	Get(ctx context.Context, id string) (*orchestrator.WorkflowDefinition, error)
	List(ctx context.Context) ([]*orchestrator.WorkflowDefinition, error)
	Delete(ctx context.Context, id string) error
}

// EventSink receives orchestrator events for out-of-process consumers.
type EventSink interface {
	Publish(ctx context.Context, event orchestrator.Event) error
	Close() error
}

// MetricsCollector records orchestration metrics.
type MetricsCollector interface {
	RecordExecutionStarted()
	RecordExecutionFinished(status string, duration time.Duration)
	RecordNodeReady()
	RecordNodeSkipped(reason string)
	RecordNodeRetry()
	RecordNodeExecuted(status string, duration time.Duration)
	RecordWorkerPoolStatus(idle, busy, stopped int)
	SetActiveExecutions(count int)
}
