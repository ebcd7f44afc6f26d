package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KeelyW-11/school-equipment-inventory/internal/model"
)

const maxEventWait = 30 * time.Second

// GetEvents handles GET /api/events?after=N&wait=S. With wait set, the request is held
// until a newer event exists or the wait elapses.
func (h *Handler) GetEvents(c *gin.Context) {
	after, err := strconv.ParseInt(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil || after < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid after"})
		return
	}
	wait, err := strconv.Atoi(c.DefaultQuery("wait", "0"))
	if err != nil || wait < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid wait"})
		return
	}

	var events []model.Event
	if wait > 0 {
		d := min(time.Duration(wait)*time.Second, maxEventWait)
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		events = h.hub.Wait(ctx, after)
	} else {
		events = h.hub.Since(after)
	}
	if events == nil {
		events = []model.Event{}
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "last_seq": h.hub.LastSeq()})
}
