package importjob

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// ProgressController streams job snapshots over a websocket so the UI
// does not have to poll. Snapshots are sent on an interval and the
// connection closes once the job goes terminal.
type ProgressController struct {
	ImportService ImportService
	Interval      time.Duration
}

func NewProgressController(importService ImportService) *ProgressController {
	return &ProgressController{
		ImportService: importService,
		Interval:      time.Second,
	}
}

func (h *ProgressController) HandleProgress(c *websocket.Conn) {
	jobID := c.Params("id")
	defer c.Close()

	for {
		job, err := h.ImportService.GetJob(context.Background(), jobID)
		if err != nil {
			c.WriteJSON(map[string]string{"error": "job not found"})
			return
		}

		if err := c.WriteJSON(job); err != nil {
			log.Println("progress write:", err)
			return
		}

		if job.Terminal() {
			return
		}

		time.Sleep(h.Interval)
	}
}
