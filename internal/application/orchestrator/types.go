package orchestrator

import "time"

// NodeStatus represents the lifecycle state of a single DAG node.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusQueued    NodeStatus = "queued"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusRetrying  NodeStatus = "retrying"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
)

// Terminal reports whether the status is one a node never leaves.
func (s NodeStatus) Terminal() bool {
	return s == NodeStatusCompleted || s == NodeStatusFailed || s == NodeStatusSkipped
}

// WorkflowStatus represents the lifecycle state of a workflow execution.
type WorkflowStatus string

const (
	WorkflowStatusIdle      WorkflowStatus = "idle"
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusPaused    WorkflowStatus = "paused"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// Terminal reports whether the status is one a workflow never leaves.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusFailed || s == WorkflowStatusCancelled
}

// RetryPolicy configures retry behavior for a node.
type RetryPolicy struct {
	MaxRetries        int     `json:"max_retries" yaml:"max_retries"`
	DelayMs           int64   `json:"delay_ms" yaml:"delay_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// DefaultRetryPolicy is applied to nodes without an explicit policy: no
// retries, and the backoff values used if a policy is later attached.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 0, DelayMs: 3000, BackoffMultiplier: 2}
}

// ConditionalNext restricts which dependents a node's completion unlocks,
// based on whether the node itself succeeded or failed.
type ConditionalNext struct {
	OnSuccess []string `json:"on_success,omitempty" yaml:"on_success"`
	OnFailure []string `json:"on_failure,omitempty" yaml:"on_failure"`
}

// DAGNode is a unit of schedulable work within a workflow.
type DAGNode struct {
	ID              string           `json:"id" yaml:"id"`
	Label           string           `json:"label" yaml:"label"`
	DependsOn       []string         `json:"depends_on,omitempty" yaml:"depends_on"`
	Retry           *RetryPolicy     `json:"retry,omitempty" yaml:"retry"`
	ConditionalNext *ConditionalNext `json:"conditional_next,omitempty" yaml:"conditional_next"`
}

// WorkflowDefinition is an immutable workflow template. The orchestrator
// only reads it; ownership stays with the caller.
type WorkflowDefinition struct {
	ID    string    `json:"id" yaml:"id"`
	Name  string    `json:"name" yaml:"name"`
	Nodes []DAGNode `json:"nodes" yaml:"nodes"`
}

// NodeState is the mutable per-node execution record.
type NodeState struct {
	NodeID      string     `json:"node_id"`
	Status      NodeStatus `json:"status"`
	RetryCount  int        `json:"retry_count"`
	Success     bool       `json:"success"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	// ExecutorRef correlates the node with the external executor instance
	// performing its work.
	ExecutorRef string `json:"executor_ref,omitempty"`
}

// Execution is the externally observable snapshot of one workflow run.
// Snapshots are deep copies; observers never share orchestrator-internal
// state.
type Execution struct {
	ID               string                `json:"id"`
	WorkflowID       string                `json:"workflow_id"`
	WorkflowName     string                `json:"workflow_name"`
	Status           WorkflowStatus        `json:"status"`
	Nodes            map[string]*NodeState `json:"nodes"`
	TotalNodes       int                   `json:"total_nodes"`
	CompletedNodes   int                   `json:"completed_nodes"`
	FailedNodes      int                   `json:"failed_nodes"`
	RunningNodeIDs   []string              `json:"running_node_ids"`
	CurrentStepLabel string                `json:"current_step_label"`
	StartedAt        *time.Time            `json:"started_at,omitempty"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
}
