// Package storage provides workflow definition store implementations.
//
// Implementations:
//   - redis: Redis-backed definition store
//   - memory: In-memory for testing and local runs
package storage
