package manager

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
	"github.com/dagrun-io/dagrun/pkg/ports"
)

// Manager coordinates workflow executions: it admits definitions, owns one
// orchestrator per active execution, and forwards orchestrator events to
// the configured sink and to in-process subscribers.
type Manager struct {
	store   ports.DefinitionStore
	sink    ports.EventSink
	metrics ports.MetricsCollector
	logger  *zap.Logger

	// Active executions, map[string]*orchestrator.Orchestrator
	executions sync.Map

	mu          sync.Mutex
	subscribers []subscriber
	nextSubID   int
}

type subscriber struct {
	id int
	fn orchestrator.Listener
}

// New creates a new execution manager.
func New(store ports.DefinitionStore, sink ports.EventSink, metrics ports.MetricsCollector, logger *zap.Logger) *Manager {
	return &Manager{
		store:   store,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
	}
}

// SubmitWorkflow validates a definition and stores it for later execution.
func (m *Manager) SubmitWorkflow(ctx context.Context, def *orchestrator.WorkflowDefinition) error {
	if errs := orchestrator.ValidateWorkflow(def); len(errs) > 0 {
		m.logger.Error("workflow validation failed",
			zap.String("workflow_id", def.ID),
			zap.Strings("errors", errs))
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}

	if err := m.store.Save(ctx, def); err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	m.logger.Info("workflow submitted",
		zap.String("workflow_id", def.ID),
		zap.Int("nodes", len(def.Nodes)))
	return nil
}

// GetWorkflow returns a stored workflow definition.
func (m *Manager) GetWorkflow(ctx context.Context, id string) (*orchestrator.WorkflowDefinition, error) {
	return m.store.Get(ctx, id)
}

// ListWorkflows returns all stored workflow definitions.
func (m *Manager) ListWorkflows(ctx context.Context) ([]*orchestrator.WorkflowDefinition, error) {
	return m.store.List(ctx)
}

// DeleteWorkflow removes a stored workflow definition.
func (m *Manager) DeleteWorkflow(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// StartExecution creates an orchestrator for a stored workflow and starts
// it. It returns the generated execution ID.
func (m *Manager) StartExecution(ctx context.Context, workflowID string) (string, error) {
	def, err := m.store.Get(ctx, workflowID)
	if err != nil {
		return "", fmt.Errorf("failed to get workflow: %w", err)
	}

	executionID := uuid.New().String()
	orch, err := orchestrator.New(def, executionID, m.logger)
	if err != nil {
		return "", err
	}

	orch.On(func(ev orchestrator.Event) {
		m.handleEvent(ev)
	})

	m.executions.Store(executionID, orch)
	m.metrics.RecordExecutionStarted()
	m.metrics.SetActiveExecutions(m.countActive())

	if err := orch.Start(); err != nil {
		m.executions.Delete(executionID)
		m.metrics.SetActiveExecutions(m.countActive())
		return "", err
	}

	m.logger.Info("execution started",
		zap.String("execution_id", executionID),
		zap.String("workflow_id", workflowID))
	return executionID, nil
}

// GetExecution returns a snapshot of an active execution.
func (m *Manager) GetExecution(executionID string) (*orchestrator.Execution, error) {
	orch, err := m.orchestrator(executionID)
	if err != nil {
		return nil, err
	}
	return orch.Execution(), nil
}

// PauseExecution halts scheduling for an active execution.
func (m *Manager) PauseExecution(executionID string) error {
	orch, err := m.orchestrator(executionID)
	if err != nil {
		return err
	}
	return orch.Pause()
}

// ResumeExecution restarts scheduling for a paused execution.
func (m *Manager) ResumeExecution(executionID string) error {
	orch, err := m.orchestrator(executionID)
	if err != nil {
		return err
	}
	return orch.Resume()
}

// CancelExecution cancels an active execution. The orchestrator stays
// registered while nodes are still running so their drained results are
// recorded; it is released once the last one reports (see handleEvent).
func (m *Manager) CancelExecution(executionID string) error {
	orch, err := m.orchestrator(executionID)
	if err != nil {
		return err
	}
	return orch.Cancel()
}

// MarkNodeRunning forwards an executor pickup callback.
func (m *Manager) MarkNodeRunning(executionID, nodeID, executorRef string) error {
	orch, err := m.orchestrator(executionID)
	if err != nil {
		return err
	}
	return orch.MarkNodeRunning(nodeID, executorRef)
}

// MarkNodeCompleted forwards an executor result callback.
func (m *Manager) MarkNodeCompleted(executionID, nodeID string, success bool) error {
	orch, err := m.orchestrator(executionID)
	if err != nil {
		return err
	}
	return orch.MarkNodeCompleted(nodeID, success)
}

// Subscribe registers a listener for events from every execution. The
// returned function unsubscribes it.
func (m *Manager) Subscribe(fn orchestrator.Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.subscribers {
			if sub.id == id {
				m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Shutdown cancels every active execution.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down execution manager")

	m.executions.Range(func(key, value interface{}) bool {
		orch := value.(*orchestrator.Orchestrator)
		if err := orch.Cancel(); err != nil {
			m.logger.Warn("cancel on shutdown",
				zap.String("execution_id", key.(string)),
				zap.Error(err))
		}
		m.executions.Delete(key)
		return true
	})
	m.metrics.SetActiveExecutions(0)

	m.logger.Info("execution manager shut down complete")
	return nil
}

func (m *Manager) orchestrator(executionID string) (*orchestrator.Orchestrator, error) {
	val, ok := m.executions.Load(executionID)
	if !ok {
		return nil, fmt.Errorf("execution not found: %s", executionID)
	}
	return val.(*orchestrator.Orchestrator), nil
}

func (m *Manager) countActive() int {
	count := 0
	m.executions.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// handleEvent records metrics, forwards to the external sink, fans out to
// in-process subscribers, and releases the execution once terminal.
func (m *Manager) handleEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventNodeReady:
		m.metrics.RecordNodeReady()
	case orchestrator.EventNodeSkipped:
		m.metrics.RecordNodeSkipped(ev.Reason)
	case orchestrator.EventNodeRetry:
		m.metrics.RecordNodeRetry()
	case orchestrator.EventWorkflowCompleted, orchestrator.EventWorkflowFailed:
		m.metrics.RecordExecutionFinished(string(ev.Execution.Status), executionDuration(ev.Execution))
		m.executions.Delete(ev.ExecutionID)
		m.metrics.SetActiveExecutions(m.countActive())
	case orchestrator.EventWorkflowProgress:
		// A cancelled execution emits no terminal event; release it once
		// its last running node has drained.
		if ev.Execution != nil &&
			ev.Execution.Status == orchestrator.WorkflowStatusCancelled &&
			len(ev.Execution.RunningNodeIDs) == 0 {
			m.executions.Delete(ev.ExecutionID)
			m.metrics.SetActiveExecutions(m.countActive())
		}
	}

	if m.sink != nil {
		if err := m.sink.Publish(context.Background(), ev); err != nil {
			m.logger.Error("failed to publish event",
				zap.String("event_type", string(ev.Type)),
				zap.String("execution_id", ev.ExecutionID),
				zap.Error(err))
		}
	}

	m.mu.Lock()
	subs := make([]subscriber, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()
	for _, sub := range subs {
		sub.fn(ev)
	}
}

func executionDuration(exec *orchestrator.Execution) time.Duration {
	if exec == nil || exec.StartedAt == nil || exec.CompletedAt == nil {
		return 0
	}
	return exec.CompletedAt.Sub(*exec.StartedAt)
}
