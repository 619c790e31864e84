package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
)

// NodeRunningRequest is the executor pickup callback payload.
type NodeRunningRequest struct {
	ExecutorRef string `json:"executor_ref"`
}

// NodeCompletedRequest is the executor result callback payload.
type NodeCompletedRequest struct {
	Success bool `json:"success"`
}

// StartExecutionResponse is returned when an execution is started.
type StartExecutionResponse struct {
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	StartedAt   string `json:"started_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSubmitWorkflow validates and stores a workflow definition
func (s *Server) handleSubmitWorkflow(c *gin.Context) {
	var def orchestrator.WorkflowDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	if err := s.manager.SubmitWorkflow(c.Request.Context(), &def); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "SUBMISSION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"workflow_id": def.ID,
		"nodes":       len(def.Nodes),
	})
}

// handleListWorkflows lists stored workflow definitions
func (s *Server) handleListWorkflows(c *gin.Context) {
	defs, err := s.manager.ListWorkflows(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list workflows", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to list workflows",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"workflows": defs,
		"total":     len(defs),
	})
}

// handleGetWorkflow returns a stored workflow definition
func (s *Server) handleGetWorkflow(c *gin.Context) {
	def, err := s.manager.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Workflow not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, def)
}

// handleDeleteWorkflow removes a stored workflow definition
func (s *Server) handleDeleteWorkflow(c *gin.Context) {
	if err := s.manager.DeleteWorkflow(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: err.Error(),
			},
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleStartExecution starts a new execution of a stored workflow
func (s *Server) handleStartExecution(c *gin.Context) {
	workflowID := c.Param("id")

	executionID, err := s.manager.StartExecution(c.Request.Context(), workflowID)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{
			Error: ErrorDetail{
				Code:    "START_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, StartExecutionResponse{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		StartedAt:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGetExecution returns a snapshot of an active execution
func (s *Server) handleGetExecution(c *gin.Context) {
	exec, err := s.manager.GetExecution(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Execution not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, exec)
}

// handlePauseExecution pauses scheduling for an execution
func (s *Server) handlePauseExecution(c *gin.Context) {
	s.lifecycle(c, s.manager.PauseExecution, "PAUSE_FAILED")
}

// handleResumeExecution resumes a paused execution
func (s *Server) handleResumeExecution(c *gin.Context) {
	s.lifecycle(c, s.manager.ResumeExecution, "RESUME_FAILED")
}

// handleCancelExecution cancels an execution
func (s *Server) handleCancelExecution(c *gin.Context) {
	s.lifecycle(c, s.manager.CancelExecution, "CANCELLATION_FAILED")
}

func (s *Server) lifecycle(c *gin.Context, op func(string) error, code string) {
	executionID := c.Param("id")

	if err := op(executionID); err != nil {
		status := http.StatusConflict
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{
			Error: ErrorDetail{
				Code:    code,
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"execution_id": executionID})
}

// handleNodeRunning records an executor picking up a queued node
func (s *Server) handleNodeRunning(c *gin.Context) {
	var req NodeRunningRequest
	// Body is optional; an empty executor_ref is allowed.
	_ = c.ShouldBindJSON(&req)

	if err := s.manager.MarkNodeRunning(c.Param("id"), c.Param("nodeId"), req.ExecutorRef); err != nil {
		s.nodeCallbackError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"execution_id": c.Param("id"),
		"node_id":      c.Param("nodeId"),
	})
}

// handleNodeCompleted records an executor result for a running node
func (s *Server) handleNodeCompleted(c *gin.Context) {
	var req NodeCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	if err := s.manager.MarkNodeCompleted(c.Param("id"), c.Param("nodeId"), req.Success); err != nil {
		s.nodeCallbackError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"execution_id": c.Param("id"),
		"node_id":      c.Param("nodeId"),
	})
}

func (s *Server) nodeCallbackError(c *gin.Context, err error) {
	status := http.StatusConflict
	if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "unknown node") {
		status = http.StatusNotFound
	}
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    "CALLBACK_REJECTED",
			Message: err.Error(),
		},
	})
}
