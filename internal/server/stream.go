package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codemind/codemind/internal/ingest"
)

// handleIngestStream runs an ingestion and streams its progress events
// as server-sent events. A client disconnect cancels the run through
// the request context.
func (s *Server) handleIngestStream(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter is required"})
		return
	}

	if !s.ingestMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "an ingestion is already running"})
		return
	}
	defer s.ingestMu.Unlock()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	events := make(chan ingest.Event, 16)
	done := make(chan error, 1)
	go func() {
		defer close(events)
		done <- s.pipeline.Run(ctx, path, func(ev ingest.Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
	}()

	for ev := range events {
		c.SSEvent("message", ev)
		c.Writer.Flush()
	}

	if err := <-done; err != nil {
		// Cancellation: the client is gone, nobody to report to.
		s.log.Info("ingest stream ended", zap.String("target", path), zap.Error(err))
	}
}
