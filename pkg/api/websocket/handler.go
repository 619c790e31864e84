package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dagrun-io/dagrun/internal/application/manager"
	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for MVP
	},
}

// Handler handles WebSocket connections
type Handler struct {
	manager *manager.Manager
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(mgr *manager.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		manager: mgr,
		logger:  logger,
	}
}

// HandleExecutionStream streams orchestrator events for a specific execution
func (h *Handler) HandleExecutionStream(c *gin.Context) {
	executionID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("execution_id", executionID),
		zap.String("client", c.ClientIP()))

	// The manager emits synchronously; the subscriber must not block, so
	// events go through a buffered channel and the writer drains it.
	eventChan := make(chan orchestrator.Event, 32)
	unsubscribe := h.manager.Subscribe(func(ev orchestrator.Event) {
		if ev.ExecutionID != executionID {
			return
		}
		select {
		case eventChan <- ev:
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("execution_id", executionID),
				zap.String("event_type", string(ev.Type)))
		}
	})
	defer unsubscribe()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Error("failed to write message", zap.Error(err))
				return
			}
		}
	}
}
