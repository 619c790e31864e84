// Package manager coordinates workflow executions across their lifetime.
//
// The manager admits and stores workflow definitions, creates one
// orchestrator per started execution, records metrics, and forwards
// orchestrator events to the configured sink and to in-process subscribers
// (the WebSocket API and the local executor pool).
package manager
