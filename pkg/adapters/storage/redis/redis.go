package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
)

const definitionKeyPrefix = "dagrun:workflow:"

// DefinitionStore implements DefinitionStore using Redis.
type DefinitionStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewDefinitionStore creates a new Redis definition store.
func NewDefinitionStore(client *redis.Client, logger *zap.Logger) *DefinitionStore {
	return &DefinitionStore{
		client: client,
		logger: logger,
	}
}

// Save stores a workflow definition, replacing any previous version.
func (s *DefinitionStore) Save(ctx context.Context, def *orchestrator.WorkflowDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	if err := s.client.Set(ctx, definitionKey(def.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	s.logger.Debug("workflow definition saved",
		zap.String("workflow_id", def.ID),
		zap.Int("nodes", len(def.Nodes)))
	return nil
}

// Get retrieves a workflow definition by ID.
func (s *DefinitionStore) Get(ctx context.Context, id string) (*orchestrator.WorkflowDefinition, error) {
	data, err := s.client.Get(ctx, definitionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("workflow not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	var def orchestrator.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}

	return &def, nil
}

// List returns all stored workflow definitions.
func (s *DefinitionStore) List(ctx context.Context) ([]*orchestrator.WorkflowDefinition, error) {
	var defs []*orchestrator.WorkflowDefinition
	var cursor uint64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, definitionKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflows: %w", err)
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				return nil, fmt.Errorf("failed to get workflow: %w", err)
			}
			var def orchestrator.WorkflowDefinition
			if err := json.Unmarshal(data, &def); err != nil {
				s.logger.Warn("skipping unreadable workflow entry",
					zap.String("key", key),
					zap.Error(err))
				continue
			}
			defs = append(defs, &def)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return defs, nil
}

// Delete removes a workflow definition.
func (s *DefinitionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, definitionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return nil
}

func definitionKey(id string) string {
	return definitionKeyPrefix + id
}
