package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	logStreamPollInterval = 500 * time.Millisecond
	logStreamWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamJobLogs pushes job log entries to the client as they appear and closes
// the connection once the job reaches a terminal status.
func (h *EvalController) StreamJobLogs(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		response.BadRequest(c, "Invalid job id")
		return
	}
	if _, err := h.evalService.GetJob(c.Request.Context(), jobID); err != nil {
		response.Error(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		// Drain client frames so close messages are processed.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	afterSeq := 0
	ticker := time.NewTicker(logStreamPollInterval)
	defer ticker.Stop()
	for {
		// Status is read before the log fetch: the orchestrator appends its
		// last entry before committing a terminal status, so a terminal read
		// here means the fetch below sees the complete log.
		job, err := h.evalService.GetJob(ctx, jobID)
		if err != nil {
			return
		}
		terminal := job.Status.Terminal()

		entries, err := h.evalService.GetJobLogs(ctx, jobID, afterSeq)
		if err != nil {
			return
		}
		for _, entry := range entries {
			_ = conn.SetWriteDeadline(time.Now().Add(logStreamWriteTimeout))
			if err := conn.WriteJSON(entry); err != nil {
				return
			}
			afterSeq = entry.Seq
		}

		if terminal {
			deadline := time.Now().Add(logStreamWriteTimeout)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status))
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
