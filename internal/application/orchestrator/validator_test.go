package orchestrator

import (
	"strings"
	"testing"
)

func TestValidateWorkflowOK(t *testing.T) {
	def := &WorkflowDefinition{
		ID:   "wf-1",
		Name: "test",
		Nodes: []DAGNode{
			{ID: "a", Label: "A"},
			{ID: "b", Label: "B", DependsOn: []string{"a"}},
		},
	}
	if errs := ValidateWorkflow(def); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateWorkflowMissingDependency(t *testing.T) {
	def := &WorkflowDefinition{
		ID: "wf-1",
		Nodes: []DAGNode{
			{ID: "a", DependsOn: []string{"ghost"}},
		},
	}
	errs := ValidateWorkflow(def)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if !strings.Contains(errs[0], "a") || !strings.Contains(errs[0], "ghost") {
		t.Fatalf("error should name node and missing dependency: %s", errs[0])
	}
}

func TestValidateWorkflowCycle(t *testing.T) {
	def := &WorkflowDefinition{
		ID: "wf-1",
		Nodes: []DAGNode{
			{ID: "a", DependsOn: []string{"b"}},
			{ID: "b", DependsOn: []string{"a"}},
		},
	}
	errs := ValidateWorkflow(def)
	if len(errs) == 0 {
		t.Fatalf("expected cycle error")
	}
	found := false
	for _, e := range errs {
		if strings.Contains(e, "cycle") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a cycle error, got %v", errs)
	}
}

func TestValidateWorkflowDuplicateAndEmpty(t *testing.T) {
	if errs := ValidateWorkflow(&WorkflowDefinition{ID: "wf"}); len(errs) == 0 {
		t.Fatalf("expected error for empty workflow")
	}
	def := &WorkflowDefinition{
		ID: "wf",
		Nodes: []DAGNode{
			{ID: "a"},
			{ID: "a"},
		},
	}
	errs := ValidateWorkflow(def)
	if len(errs) != 1 || !strings.Contains(errs[0], "duplicate") {
		t.Fatalf("expected duplicate error, got %v", errs)
	}
}

func TestTopologicalSortDiamond(t *testing.T) {
	nodes := []DAGNode{
		{ID: "d", DependsOn: []string{"b", "c"}},
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"a"}},
	}
	sorted := TopologicalSort(nodes)
	if len(sorted) != 4 {
		t.Fatalf("expected 4 nodes, got %v", sorted)
	}
	pos := make(map[string]int, len(sorted))
	for i, id := range sorted {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["a"] > pos["c"] || pos["b"] > pos["d"] || pos["c"] > pos["d"] {
		t.Fatalf("dependency order violated: %v", sorted)
	}
}

func TestTopologicalSortCycleOmitsNodes(t *testing.T) {
	nodes := []DAGNode{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c"},
	}
	sorted := TopologicalSort(nodes)
	if len(sorted) != 1 || sorted[0] != "c" {
		t.Fatalf("expected only the acyclic node, got %v", sorted)
	}
}
