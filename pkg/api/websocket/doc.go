// Package websocket streams orchestrator events to WebSocket clients.
//
// Each connection subscribes to the execution manager's event feed filtered
// to a single execution ID; events are delivered as JSON text messages.
package websocket
