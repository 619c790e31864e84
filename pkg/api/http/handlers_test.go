package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dagrun-io/dagrun/internal/application/manager"
	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
	eventsmem "github.com/dagrun-io/dagrun/pkg/adapters/events/memory"
	storagemem "github.com/dagrun-io/dagrun/pkg/adapters/storage/memory"
)

type nopMetrics struct{}

func (nopMetrics) RecordExecutionStarted()                        {}
func (nopMetrics) RecordExecutionFinished(string, time.Duration)  {}
func (nopMetrics) RecordNodeReady()                               {}
func (nopMetrics) RecordNodeSkipped(string)                       {}
func (nopMetrics) RecordNodeRetry()                               {}
func (nopMetrics) RecordNodeExecuted(string, time.Duration)       {}
func (nopMetrics) RecordWorkerPoolStatus(int, int, int)           {}
func (nopMetrics) SetActiveExecutions(int)                        {}

func newTestServer() *Server {
	m := manager.New(
		storagemem.NewInMemoryDefinitionStore(),
		eventsmem.NewInMemorySink(),
		nopMetrics{},
		zap.NewNop(),
	)
	return NewServer(&Config{Port: 0, Manager: m, Logger: zap.NewNop()})
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func submitAndStart(t *testing.T, s *Server) string {
	t.Helper()
	def := orchestrator.WorkflowDefinition{
		ID:   "wf-1",
		Name: "test",
		Nodes: []orchestrator.DAGNode{
			{ID: "a", Label: "A"},
			{ID: "b", Label: "B", DependsOn: []string{"a"}},
		},
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/workflows", def); w.Code != http.StatusCreated {
		t.Fatalf("submit: status %d, body %s", w.Code, w.Body.String())
	}
	w := doJSON(t, s, http.MethodPost, "/api/v1/workflows/wf-1/executions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("start: status %d, body %s", w.Code, w.Body.String())
	}
	var resp StartExecutionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if resp.ExecutionID == "" {
		t.Fatalf("empty execution id in %s", w.Body.String())
	}
	return resp.ExecutionID
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()
	w := doJSON(t, s, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("body: %v", body)
	}
}

func TestSubmitWorkflowRejectsInvalid(t *testing.T) {
	s := newTestServer()

	w := doJSON(t, s, http.MethodPost, "/api/v1/workflows", orchestrator.WorkflowDefinition{
		ID:    "bad",
		Nodes: []orchestrator.DAGNode{{ID: "a", DependsOn: []string{"ghost"}}},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "SUBMISSION_FAILED" {
		t.Fatalf("error code: %s", resp.Error.Code)
	}
}

func TestWorkflowCRUDEndpoints(t *testing.T) {
	s := newTestServer()
	def := orchestrator.WorkflowDefinition{
		ID:    "wf-crud",
		Name:  "crud",
		Nodes: []orchestrator.DAGNode{{ID: "a", Label: "A"}},
	}

	if w := doJSON(t, s, http.MethodPost, "/api/v1/workflows", def); w.Code != http.StatusCreated {
		t.Fatalf("submit: %d", w.Code)
	}

	w := doJSON(t, s, http.MethodGet, "/api/v1/workflows/wf-crud", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	var got orchestrator.WorkflowDefinition
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "crud" {
		t.Fatalf("got %+v", got)
	}

	w = doJSON(t, s, http.MethodGet, "/api/v1/workflows", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}

	if w := doJSON(t, s, http.MethodDelete, "/api/v1/workflows/wf-crud", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodGet, "/api/v1/workflows/wf-crud", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", w.Code)
	}
}

func TestStartExecutionNotFound(t *testing.T) {
	s := newTestServer()
	w := doJSON(t, s, http.MethodPost, "/api/v1/workflows/missing/executions", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
}

func TestExecutionLifecycleEndpoints(t *testing.T) {
	s := newTestServer()
	execID := submitAndStart(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/v1/executions/"+execID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get execution: %d", w.Code)
	}
	var exec orchestrator.Execution
	if err := json.Unmarshal(w.Body.Bytes(), &exec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if exec.Status != orchestrator.WorkflowStatusRunning || exec.TotalNodes != 2 {
		t.Fatalf("unexpected execution: %+v", exec)
	}

	if w := doJSON(t, s, http.MethodPost, "/api/v1/executions/"+execID+"/pause", nil); w.Code != http.StatusOK {
		t.Fatalf("pause: %d", w.Code)
	}
	// Pausing twice conflicts.
	if w := doJSON(t, s, http.MethodPost, "/api/v1/executions/"+execID+"/pause", nil); w.Code != http.StatusConflict {
		t.Fatalf("double pause: %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/executions/"+execID+"/resume", nil); w.Code != http.StatusOK {
		t.Fatalf("resume: %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/executions/"+execID+"/cancel", nil); w.Code != http.StatusOK {
		t.Fatalf("cancel: %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodGet, "/api/v1/executions/"+execID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after cancel: %d", w.Code)
	}
}

func TestNodeCallbackEndpoints(t *testing.T) {
	s := newTestServer()
	execID := submitAndStart(t, s)

	w := doJSON(t, s, http.MethodPost,
		"/api/v1/executions/"+execID+"/nodes/a/running",
		NodeRunningRequest{ExecutorRef: "remote-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("running: %d, body %s", w.Code, w.Body.String())
	}

	// Completing a node that never started is rejected.
	w = doJSON(t, s, http.MethodPost,
		"/api/v1/executions/"+execID+"/nodes/b/completed",
		NodeCompletedRequest{Success: true})
	if w.Code != http.StatusConflict {
		t.Fatalf("early completion: %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodPost,
		"/api/v1/executions/"+execID+"/nodes/a/completed",
		NodeCompletedRequest{Success: true})
	if w.Code != http.StatusOK {
		t.Fatalf("completed: %d, body %s", w.Code, w.Body.String())
	}

	// Unknown node.
	w = doJSON(t, s, http.MethodPost,
		"/api/v1/executions/"+execID+"/nodes/ghost/running", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown node: %d", w.Code)
	}

	// Unknown execution.
	w = doJSON(t, s, http.MethodPost,
		"/api/v1/executions/nope/nodes/a/running", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown execution: %d", w.Code)
	}
}
