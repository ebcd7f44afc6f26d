package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KeelyW-11/school-equipment-inventory/internal/catalog"
	"github.com/KeelyW-11/school-equipment-inventory/internal/model"
)

const maxImportBytes = 5 << 20

// GetStatus reports readiness and overall progress for the loading indicator.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ready":    h.catalog.IsReady(),
		"stats":    h.catalog.Stats(""),
		"scanner":  h.scanner.Status().State,
		"last_seq": h.hub.LastSeq(),
	})
}

// ListEquipment handles GET /api/equipment?room=&status=&q=.
func (h *Handler) ListEquipment(c *gin.Context) {
	if !h.catalog.IsReady() {
		abortWithError(c, catalog.ErrNotReady)
		return
	}

	filter := catalog.Filter{Room: c.Query("room"), Keyword: c.Query("q")}
	switch s := c.Query("status"); s {
	case "", "all":
	case string(model.StatusChecked), string(model.StatusUnchecked):
		filter.Status = model.Status(s)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid status %q", s)})
		return
	}

	c.JSON(http.StatusOK, h.catalog.Query(filter))
}

// GetRooms handles GET /api/rooms.
func (h *Handler) GetRooms(c *gin.Context) {
	rooms := h.catalog.Rooms()
	if rooms == nil {
		rooms = []string{}
	}
	c.JSON(http.StatusOK, rooms)
}

// GetStats handles GET /api/stats?room=.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Stats(c.Query("room")))
}

// ToggleEquipment handles POST /api/equipment/:id/toggle.
func (h *Handler) ToggleEquipment(c *gin.Context) {
	rec, err := h.catalog.Toggle(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type bulkCheckRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// BulkCheck handles POST /api/equipment/bulk-check.
func (h *Handler) BulkCheck(c *gin.Context) {
	var req bulkCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.catalog.BulkCheck(c.Request.Context(), req.IDs)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": n})
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

// ResetEquipment handles POST /api/equipment/reset. The client shows the confirmation
// dialog and sends its answer.
func (h *Handler) ResetEquipment(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	confirmed := catalog.ConfirmFunc(func(string) bool { return req.Confirm })
	if err := h.catalog.Reset(c.Request.Context(), confirmed); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportEquipment handles POST /api/equipment/import with a delimited table as the body.
func (h *Handler) ImportEquipment(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	report, err := h.catalog.Import(c.Request.Context(), body)
	if errors.Is(err, catalog.ErrNotReady) {
		abortWithError(c, err)
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.scanner.Drain(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

// ReloadEquipment handles POST /api/equipment/reload.
func (h *Handler) ReloadEquipment(c *gin.Context) {
	c.JSON(http.StatusOK, h.reloader.LoadOnce(c.Request.Context()))
}

// ExportEquipment handles GET /api/export.
func (h *Handler) ExportEquipment(c *gin.Context) {
	if !h.catalog.IsReady() {
		abortWithError(c, catalog.ErrNotReady)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, catalog.ExportFilename(time.Now())))
	c.Status(http.StatusOK)
	if err := h.catalog.Export(c.Writer); err != nil {
		c.Error(err)
	}
}
