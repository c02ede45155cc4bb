package api

import (
	"io"
	"net/http"
	"time"

	"BriefToPack-server/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GetJob returns the current job snapshot.
func GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	job, err := service.PipelineRunner.Jobs().Get(jobID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// CancelJob requests cooperative cancellation. The runner stops between nodes;
// artifacts already merged stay available.
func CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")
	ok, err := service.PipelineRunner.Cancel(jobID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	job, err := service.PipelineRunner.Jobs().Get(jobID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": ok, "job": job})
}

// JobProgressWebSocket pushes the job snapshot on every status or progress
// change, polling the store once a second, and closes after the final state.
func JobProgressWebSocket(c *gin.Context) {
	jobID := c.Param("job_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "websocket upgrade failed"})
		return
	}
	defer conn.Close()

	job, err := service.PipelineRunner.Jobs().Get(jobID)
	if err != nil {
		conn.WriteJSON(map[string]interface{}{"error": "job not found: " + err.Error()})
		return
	}
	_ = conn.WriteJSON(job)
	if job.Terminal() {
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	prevStatus := job.Status
	prevProgress := job.Progress

	for range ticker.C {
		cur, err := service.PipelineRunner.Jobs().Get(jobID)
		if err != nil {
			continue
		}

		if cur.Status != prevStatus || cur.Progress != prevProgress || cur.Message != job.Message {
			if err := conn.WriteJSON(cur); err != nil {
				break
			}
			prevStatus = cur.Status
			prevProgress = cur.Progress
			job = cur
		}

		if cur.Terminal() {
			_ = conn.WriteJSON(cur)
			break
		}
	}
}

// JobEvents streams the same change feed over SSE for clients without
// websocket support. One event per change, a final "done" event on terminal.
func JobEvents(c *gin.Context) {
	jobID := c.Param("job_id")
	job, err := service.PipelineRunner.Jobs().Get(jobID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("progress", job)
	c.Writer.Flush()
	if job.Terminal() {
		c.SSEvent("done", job)
		return
	}

	prevStatus := job.Status
	prevProgress := job.Progress
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-ticker.C:
		}

		cur, err := service.PipelineRunner.Jobs().Get(jobID)
		if err != nil {
			return false
		}
		if cur.Status != prevStatus || cur.Progress != prevProgress {
			c.SSEvent("progress", cur)
			prevStatus = cur.Status
			prevProgress = cur.Progress
		}
		if cur.Terminal() {
			c.SSEvent("done", cur)
			return false
		}
		return true
	})
}
