package http

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleStream sends each structured log line as a server-sent "log" event,
// starting with the recent backlog. The stream ends when the client leaves or
// falls too far behind.
func (s *Server) handleStream(c *gin.Context) {
	lines, cancel := s.logs.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			c.SSEvent("log", string(bytes.TrimRight(line, "\n")))
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}
