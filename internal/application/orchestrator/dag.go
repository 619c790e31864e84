package orchestrator

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Skip reasons carried by node:skipped events.
const (
	SkipReasonDependencyFailed = "Dependency failed"
	SkipReasonBranchNotTaken   = "Conditional branch not taken"
	SkipReasonCancelled        = "Workflow cancelled"
)

// Orchestrator drives one workflow execution. It owns the per-node state
// table and the execution snapshot for its lifetime and is discarded once
// the workflow reaches a terminal status.
//
// All public methods are serialized by an internal mutex; node execution
// itself is external and may be arbitrarily concurrent. The external
// executor reacts to node:ready events and reports back through
// MarkNodeRunning and MarkNodeCompleted.
type Orchestrator struct {
	mu sync.Mutex

	def   *WorkflowDefinition
	nodes map[string]*DAGNode
	order []string // declaration order, the only scheduling tie-break

	executionID string
	status      WorkflowStatus
	states      map[string]*NodeState
	startedAt   *time.Time
	completedAt *time.Time

	retryTimers map[string]*time.Timer

	emitter emitter
	logger  *zap.Logger
}

// New builds an orchestrator for a validated workflow definition.
// Construction is the validation boundary: an invalid graph is refused here
// and never scheduled.
func New(def *WorkflowDefinition, executionID string, logger *zap.Logger) (*Orchestrator, error) {
	if errs := ValidateWorkflow(def); len(errs) > 0 {
		return nil, fmt.Errorf("invalid workflow %s: %s", def.ID, errs[0])
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		def:         def,
		nodes:       make(map[string]*DAGNode, len(def.Nodes)),
		order:       make([]string, 0, len(def.Nodes)),
		executionID: executionID,
		status:      WorkflowStatusIdle,
		states:      make(map[string]*NodeState, len(def.Nodes)),
		retryTimers: make(map[string]*time.Timer),
		emitter:     emitter{logger: logger},
		logger:      logger,
	}

	for i := range def.Nodes {
		node := &def.Nodes[i]
		o.nodes[node.ID] = node
		o.order = append(o.order, node.ID)
		o.states[node.ID] = &NodeState{NodeID: node.ID, Status: NodeStatusPending}
	}

	return o, nil
}

// On registers an event listener and returns its unsubscribe function.
func (o *Orchestrator) On(fn Listener) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	unsubscribe := o.emitter.subscribe(fn)
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		unsubscribe()
	}
}

// Execution returns a snapshot copy of the current execution state.
func (o *Orchestrator) Execution() *Execution {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot()
}

// Node returns the definition of a node by ID.
func (o *Orchestrator) Node(nodeID string) (*DAGNode, bool) {
	node, ok := o.nodes[nodeID]
	return node, ok
}

// Start transitions the workflow from idle to running and schedules the
// initial set of ready nodes.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status != WorkflowStatusIdle {
		return fmt.Errorf("cannot start workflow in status %s", o.status)
	}
	now := time.Now()
	o.status = WorkflowStatusRunning
	o.startedAt = &now
	o.logger.Info("workflow started",
		zap.String("execution_id", o.executionID),
		zap.String("workflow_id", o.def.ID),
		zap.Int("nodes", len(o.order)))
	o.advance()
	return nil
}

// Pause halts scheduling. Nodes already running keep reporting completion
// normally; their results are recorded but no new nodes are queued until
// Resume.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status != WorkflowStatusRunning {
		return fmt.Errorf("cannot pause workflow in status %s", o.status)
	}
	o.status = WorkflowStatusPaused
	o.logger.Info("workflow paused", zap.String("execution_id", o.executionID))
	return nil
}

// Resume restarts scheduling after a Pause.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status != WorkflowStatusPaused {
		return fmt.Errorf("cannot resume workflow in status %s", o.status)
	}
	o.status = WorkflowStatusRunning
	o.logger.Info("workflow resumed", zap.String("execution_id", o.executionID))
	o.advance()
	return nil
}

// Cancel stops scheduling new work without killing in-flight work: every
// pending or queued node is skipped, all retry timers are cleared, and the
// workflow becomes cancelled. Callbacks for nodes still running are accepted
// afterwards but trigger no further scheduling.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status.Terminal() {
		return fmt.Errorf("cannot cancel workflow in status %s", o.status)
	}

	for id, timer := range o.retryTimers {
		timer.Stop()
		delete(o.retryTimers, id)
	}

	now := time.Now()
	for _, id := range o.order {
		st := o.states[id]
		if st.Status == NodeStatusPending || st.Status == NodeStatusQueued {
			st.Status = NodeStatusSkipped
			st.CompletedAt = &now
			o.emitter.emit(Event{
				Type:        EventNodeSkipped,
				ExecutionID: o.executionID,
				NodeID:      id,
				Reason:      SkipReasonCancelled,
			})
		}
	}

	o.status = WorkflowStatusCancelled
	o.completedAt = &now
	o.logger.Info("workflow cancelled", zap.String("execution_id", o.executionID))
	o.emitProgress()
	return nil
}

// MarkNodeRunning records that the external executor picked up a queued
// node. executorRef is an opaque correlation handle to the executor
// instance.
func (o *Orchestrator) MarkNodeRunning(nodeID, executorRef string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status != WorkflowStatusRunning && o.status != WorkflowStatusPaused {
		return fmt.Errorf("cannot mark node running while workflow is %s", o.status)
	}
	st, ok := o.states[nodeID]
	if !ok {
		return fmt.Errorf("unknown node: %s", nodeID)
	}
	if st.Status != NodeStatusQueued {
		return fmt.Errorf("node %s is %s, not queued", nodeID, st.Status)
	}

	now := time.Now()
	st.Status = NodeStatusRunning
	st.StartedAt = &now
	st.ExecutorRef = executorRef

	o.logger.Debug("node running",
		zap.String("execution_id", o.executionID),
		zap.String("node_id", nodeID),
		zap.String("executor_ref", executorRef))
	o.emitProgress()
	return nil
}

// MarkNodeCompleted records the outcome the external executor reports for a
// running node. A failure goes through the retry policy before it becomes
// terminal. Scheduling only advances while the workflow is running; a late
// callback after Pause or Cancel still updates state and counters.
func (o *Orchestrator) MarkNodeCompleted(nodeID string, success bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	st, ok := o.states[nodeID]
	if !ok {
		return fmt.Errorf("unknown node: %s", nodeID)
	}
	if st.Status != NodeStatusRunning {
		return fmt.Errorf("node %s is %s, not running", nodeID, st.Status)
	}

	now := time.Now()
	if success {
		st.Status = NodeStatusCompleted
		st.Success = true
		st.CompletedAt = &now
		o.logger.Info("node completed",
			zap.String("execution_id", o.executionID),
			zap.String("node_id", nodeID))
	} else {
		o.handleFailure(nodeID, st, now)
	}

	if o.status == WorkflowStatusRunning {
		o.advance()
	}
	o.emitProgress()
	return nil
}

// handleFailure applies the retry policy: schedule a backoff retry while
// budget remains, otherwise settle the node terminally. A node that
// declares a conditional branch completes either way once its budget is
// exhausted, carrying the outcome in Success so the onFailure branch can
// fire; a plain node fails terminally. Once the workflow is terminal no
// retry is scheduled regardless of remaining budget: a late failure
// callback settles the node with the result it has, so Cancel leaves no
// timers and no node parked in retrying.
func (o *Orchestrator) handleFailure(nodeID string, st *NodeState, now time.Time) {
	node := o.nodes[nodeID]
	policy := DefaultRetryPolicy()
	if node.Retry != nil {
		policy = *node.Retry
	}

	if st.RetryCount < policy.MaxRetries && !o.status.Terminal() {
		st.RetryCount++
		st.Status = NodeStatusRetrying
		delay := time.Duration(float64(policy.DelayMs)*math.Pow(policy.BackoffMultiplier, float64(st.RetryCount-1))) * time.Millisecond
		o.logger.Warn("node failed, retrying",
			zap.String("execution_id", o.executionID),
			zap.String("node_id", nodeID),
			zap.Int("retry_count", st.RetryCount),
			zap.Duration("delay", delay))
		o.emitter.emit(Event{
			Type:        EventNodeRetry,
			ExecutionID: o.executionID,
			NodeID:      nodeID,
			RetryCount:  st.RetryCount,
			Delay:       delay,
		})
		o.retryTimers[nodeID] = time.AfterFunc(delay, func() {
			o.retryFired(nodeID)
		})
		return
	}

	st.Success = false
	st.CompletedAt = &now
	st.Error = fmt.Sprintf("failed after %d attempts", st.RetryCount+1)
	if node.ConditionalNext != nil {
		st.Status = NodeStatusCompleted
		o.logger.Warn("branch node completed unsuccessfully",
			zap.String("execution_id", o.executionID),
			zap.String("node_id", nodeID),
			zap.Int("attempts", st.RetryCount+1))
		return
	}
	st.Status = NodeStatusFailed
	o.logger.Error("node failed terminally",
		zap.String("execution_id", o.executionID),
		zap.String("node_id", nodeID),
		zap.Int("attempts", st.RetryCount+1))
}

// retryFired requeues a retrying node once its backoff timer elapses. The
// timer registry doubles as the cancellation guard: Cancel clears the
// registry under the lock, so a stale callback finds nothing and returns.
func (o *Orchestrator) retryFired(nodeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.retryTimers[nodeID]; !ok {
		return
	}
	delete(o.retryTimers, nodeID)

	st := o.states[nodeID]
	if o.status.Terminal() || st.Status != NodeStatusRetrying {
		return
	}

	st.Status = NodeStatusQueued
	o.emitter.emit(Event{
		Type:        EventNodeReady,
		ExecutionID: o.executionID,
		NodeID:      nodeID,
		Node:        o.nodes[nodeID],
	})
}

// advance is the scheduler core: it settles cascading skips, queues every
// eligible node, and detects the terminal state. Callers hold o.mu.
func (o *Orchestrator) advance() {
	for o.skipPass() {
	}

	ready := o.findReadyNodes()
	if len(ready) > 0 {
		for _, node := range ready {
			o.states[node.ID].Status = NodeStatusQueued
			o.emitter.emit(Event{
				Type:        EventNodeReady,
				ExecutionID: o.executionID,
				NodeID:      node.ID,
				Node:        node,
			})
		}
		return
	}

	for _, st := range o.states {
		switch st.Status {
		case NodeStatusQueued, NodeStatusRunning, NodeStatusRetrying:
			// still in flight, not done yet
			return
		}
	}

	now := time.Now()
	o.completedAt = &now
	eventType := EventWorkflowCompleted
	if o.failedCount() > 0 {
		o.status = WorkflowStatusFailed
		eventType = EventWorkflowFailed
	} else {
		o.status = WorkflowStatusCompleted
	}
	o.logger.Info("workflow finished",
		zap.String("execution_id", o.executionID),
		zap.String("status", string(o.status)))
	o.emitter.emit(Event{
		Type:        eventType,
		ExecutionID: o.executionID,
		Execution:   o.snapshot(),
	})
}

// skipPass marks every pending node whose dependencies can no longer all
// complete, or which a conditional branch excluded. It reports whether any
// node transitioned, so advance can settle transitive skips.
func (o *Orchestrator) skipPass() bool {
	changed := false
	now := time.Now()
	for _, id := range o.order {
		st := o.states[id]
		if st.Status != NodeStatusPending {
			continue
		}
		reason := o.skipReason(id)
		if reason == "" {
			continue
		}
		st.Status = NodeStatusSkipped
		st.CompletedAt = &now
		changed = true
		o.logger.Info("node skipped",
			zap.String("execution_id", o.executionID),
			zap.String("node_id", id),
			zap.String("reason", reason))
		o.emitter.emit(Event{
			Type:        EventNodeSkipped,
			ExecutionID: o.executionID,
			NodeID:      id,
			Reason:      reason,
		})
	}
	return changed
}

// skipReason decides whether a pending node must be skipped. A dependency
// that terminally failed or was skipped wins over a conditional-branch
// exclusion.
func (o *Orchestrator) skipReason(nodeID string) string {
	branchMiss := false
	for _, dep := range o.nodes[nodeID].DependsOn {
		switch o.states[dep].Status {
		case NodeStatusFailed, NodeStatusSkipped:
			return SkipReasonDependencyFailed
		case NodeStatusCompleted:
			if !o.branchTaken(dep, nodeID) {
				branchMiss = true
			}
		}
	}
	if branchMiss {
		return SkipReasonBranchNotTaken
	}
	return ""
}

// branchTaken reports whether a completed dependency's conditional branch
// (if any) unlocks the given dependent. A dependency without conditionalNext
// unlocks all dependents regardless of its success value.
func (o *Orchestrator) branchTaken(depID, nodeID string) bool {
	dep := o.nodes[depID]
	if dep.ConditionalNext == nil {
		return true
	}
	branch := dep.ConditionalNext.OnFailure
	if o.states[depID].Success {
		branch = dep.ConditionalNext.OnSuccess
	}
	for _, id := range branch {
		if id == nodeID {
			return true
		}
	}
	return false
}

// findReadyNodes collects, in declaration order, every pending node whose
// dependencies are all completed. Parallel-eligible nodes are returned
// together; actual concurrency is the executor's decision.
func (o *Orchestrator) findReadyNodes() []*DAGNode {
	var ready []*DAGNode
	for _, id := range o.order {
		if o.states[id].Status != NodeStatusPending {
			continue
		}
		eligible := true
		for _, dep := range o.nodes[id].DependsOn {
			if o.states[dep].Status != NodeStatusCompleted {
				eligible = false
				break
			}
		}
		if eligible {
			ready = append(ready, o.nodes[id])
		}
	}
	return ready
}

func (o *Orchestrator) emitProgress() {
	o.emitter.emit(Event{
		Type:        EventWorkflowProgress,
		ExecutionID: o.executionID,
		Execution:   o.snapshot(),
	})
}

func (o *Orchestrator) failedCount() int {
	failed := 0
	for _, st := range o.states {
		if st.Status == NodeStatusFailed {
			failed++
		}
	}
	return failed
}

// snapshot builds a deep copy of the execution state. Callers hold o.mu.
func (o *Orchestrator) snapshot() *Execution {
	exec := &Execution{
		ID:           o.executionID,
		WorkflowID:   o.def.ID,
		WorkflowName: o.def.Name,
		Status:       o.status,
		Nodes:        make(map[string]*NodeState, len(o.states)),
		TotalNodes:   len(o.states),
		StartedAt:    copyTime(o.startedAt),
		CompletedAt:  copyTime(o.completedAt),
	}

	var running []string
	for _, id := range o.order {
		st := *o.states[id]
		st.StartedAt = copyTime(st.StartedAt)
		st.CompletedAt = copyTime(st.CompletedAt)
		exec.Nodes[id] = &st

		switch st.Status {
		case NodeStatusCompleted:
			exec.CompletedNodes++
		case NodeStatusFailed:
			exec.FailedNodes++
		case NodeStatusRunning:
			running = append(running, id)
		}
	}
	exec.RunningNodeIDs = running
	exec.CurrentStepLabel = o.stepLabel(running, exec.CompletedNodes)
	return exec
}

// stepLabel is a human-facing progress summary with no scheduling
// semantics.
func (o *Orchestrator) stepLabel(running []string, completed int) string {
	switch len(running) {
	case 0:
		return fmt.Sprintf("%d/%d nodes completed", completed, len(o.states))
	case 1:
		return o.nodes[running[0]].Label
	default:
		return fmt.Sprintf("%d tasks in parallel", len(running))
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
