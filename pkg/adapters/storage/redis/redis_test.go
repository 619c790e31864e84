package redis

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
)

func newTestStore(t *testing.T) *DefinitionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDefinitionStore(client, zap.NewNop())
}

func sampleDef(id string) *orchestrator.WorkflowDefinition {
	return &orchestrator.WorkflowDefinition{
		ID:   id,
		Name: "sample",
		Nodes: []orchestrator.DAGNode{
			{ID: "a", Label: "A"},
			{ID: "b", Label: "B", DependsOn: []string{"a"}, Retry: &orchestrator.RetryPolicy{
				MaxRetries: 1, DelayMs: 100, BackoffMultiplier: 2,
			}},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, sampleDef("wf-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "wf-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "sample" || len(got.Nodes) != 2 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if got.Nodes[1].Retry == nil || got.Nodes[1].Retry.MaxRetries != 1 {
		t.Fatalf("retry policy lost in roundtrip: %+v", got.Nodes[1].Retry)
	}
}

func TestGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"wf-1", "wf-2", "wf-3"} {
		if err := store.Save(ctx, sampleDef(id)); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	defs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}

	if err := store.Delete(ctx, "wf-2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	defs, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions after delete, got %d", len(defs))
	}
	for _, def := range defs {
		if def.ID == "wf-2" {
			t.Fatalf("deleted definition still listed")
		}
	}
}

func TestSaveReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, sampleDef("wf-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	updated := sampleDef("wf-1")
	updated.Name = "renamed"
	if err := store.Save(ctx, updated); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "wf-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "renamed" {
		t.Fatalf("expected replacement, got %q", got.Name)
	}
}
