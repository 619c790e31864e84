package orchestrator

import "fmt"

// ValidateWorkflow checks a workflow definition for dangling dependency
// references and cycles. It returns a list of human-readable errors; an
// empty list means the definition is admissible. It is side-effect free.
func ValidateWorkflow(def *WorkflowDefinition) []string {
	var errs []string

	if def == nil {
		return []string{"workflow is nil"}
	}
	if len(def.Nodes) == 0 {
		return []string{"workflow must have at least one node"}
	}

	ids := make(map[string]bool, len(def.Nodes))
	for _, node := range def.Nodes {
		if node.ID == "" {
			errs = append(errs, "node ID is required")
			continue
		}
		if ids[node.ID] {
			errs = append(errs, fmt.Sprintf("duplicate node ID: %s", node.ID))
		}
		ids[node.ID] = true
	}

	for _, node := range def.Nodes {
		for _, dep := range node.DependsOn {
			if !ids[dep] {
				errs = append(errs, fmt.Sprintf("node %s depends on missing node %s", node.ID, dep))
			}
		}
	}

	if sorted := TopologicalSort(def.Nodes); len(sorted) < len(ids) {
		errs = append(errs, "workflow contains a cycle")
	}

	return errs
}

// TopologicalSort orders node IDs so every node appears after its
// dependencies (Kahn's algorithm). Nodes on a cycle are omitted, so a result
// shorter than the input signals a cyclic graph. Dependencies on unknown
// nodes are ignored here; ValidateWorkflow reports them separately.
func TopologicalSort(nodes []DAGNode) []string {
	known := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		known[node.ID] = true
	}

	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		if _, ok := inDegree[node.ID]; !ok {
			inDegree[node.ID] = 0
		}
		for _, dep := range node.DependsOn {
			if !known[dep] {
				continue
			}
			inDegree[node.ID]++
			dependents[dep] = append(dependents[dep], node.ID)
		}
	}

	// Seed the queue in declaration order so the preview is deterministic.
	var queue []string
	for _, node := range nodes {
		if inDegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	sorted := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)
		for _, next := range dependents[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return sorted
}
