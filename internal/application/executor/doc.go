// Package executor implements the in-process executor pool.
//
// The pool is the reference implementation of the external-executor
// collaborator: a fixed number of goroutines that
//   - Consume node:ready notifications from one orchestrator
//   - Run the node work through a caller-supplied RunFunc
//   - Report pickup and outcome back via MarkNodeRunning/MarkNodeCompleted
//
// The health monitor tracks worker status and logs metrics.
package executor
