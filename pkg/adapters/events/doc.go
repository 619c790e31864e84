// Package events provides event sink implementations.
//
// Implementations:
//   - redis: Redis Streams publisher for out-of-process consumers
//   - memory: In-memory for testing
package events
