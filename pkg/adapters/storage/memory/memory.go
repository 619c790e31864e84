package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
)

// InMemoryDefinitionStore implements DefinitionStore using an in-memory map.
// Intended for tests and local runs.
type InMemoryDefinitionStore struct {
	definitions map[string]*orchestrator.WorkflowDefinition
	mu          sync.RWMutex
}

// NewInMemoryDefinitionStore creates a new in-memory definition store.
func NewInMemoryDefinitionStore() *InMemoryDefinitionStore {
	return &InMemoryDefinitionStore{
		definitions: make(map[string]*orchestrator.WorkflowDefinition),
	}
}

// Save stores a workflow definition, replacing any previous version.
func (s *InMemoryDefinitionStore) Save(ctx context.Context, def *orchestrator.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Shallow copy of the template; nodes are never mutated after admission.
	defCopy := *def
	s.definitions[def.ID] = &defCopy
	return nil
}

// Get retrieves a workflow definition by ID.
func (s *InMemoryDefinitionStore) Get(ctx context.Context, id string) (*orchestrator.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.definitions[id]
	if !ok {
		return nil, fmt.Errorf("workflow not found: %s", id)
	}
	return def, nil
}

// List returns all stored workflow definitions.
func (s *InMemoryDefinitionStore) List(ctx context.Context) ([]*orchestrator.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]*orchestrator.WorkflowDefinition, 0, len(s.definitions))
	for _, def := range s.definitions {
		defs = append(defs, def)
	}
	return defs, nil
}

// Delete removes a workflow definition.
func (s *InMemoryDefinitionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.definitions, id)
	return nil
}
