// Package orchestrator implements the workflow DAG scheduling core.
//
// An Orchestrator drives one workflow execution by:
//   - Validating the dependency graph before admission (Kahn's algorithm)
//   - Computing which nodes are ready to run and emitting node:ready events
//   - Resolving conditional branches and cascading skips
//   - Applying per-node retry policy with exponential backoff
//   - Tracking aggregate progress and terminal status
//
// The orchestrator never performs node work itself: an external executor
// reacts to node:ready events and reports back through MarkNodeRunning and
// MarkNodeCompleted.
package orchestrator
