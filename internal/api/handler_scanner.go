package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KeelyW-11/school-equipment-inventory/internal/catalog"
	"github.com/KeelyW-11/school-equipment-inventory/internal/model"
	"github.com/KeelyW-11/school-equipment-inventory/internal/scanner"
)

// GetScanner handles GET /api/scanner.
func (h *Handler) GetScanner(c *gin.Context) {
	c.JSON(http.StatusOK, h.scanner.Status())
}

// OpenScanner handles POST /api/scanner/open. A camera failure is not an HTTP error: the
// session opens in manual-entry mode and the status carries the reason.
func (h *Handler) OpenScanner(c *gin.Context) {
	var caps scanner.Capabilities
	if err := c.ShouldBindJSON(&caps); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, _ := h.scanner.Open(c.Request.Context(), caps)
	c.JSON(http.StatusOK, st)
}

type decodeRequest struct {
	Result json.RawMessage `json:"result" binding:"required"`
}

// DecodeScan handles POST /api/scanner/decode. result is the decoder output, either a
// string or an object with a "data" field.
func (h *Handler) DecodeScan(c *gin.Context) {
	var req decodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raw := strings.TrimSpace(string(req.Result))
	var text string
	if err := json.Unmarshal(req.Result, &text); err == nil {
		raw = text
	}

	res, err := h.scanner.Decode(c.Request.Context(), raw)
	respondScan(c, res, err)
}

type manualRequest struct {
	ID string `json:"id" binding:"required"`
}

// ManualScan handles POST /api/scanner/manual.
func (h *Handler) ManualScan(c *gin.Context) {
	var req manualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.scanner.Manual(c.Request.Context(), req.ID)
	respondScan(c, res, err)
}

type deviceErrorRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ReportDeviceError handles POST /api/scanner/device-error, sent when the camera stops
// mid-session.
func (h *Handler) ReportDeviceError(c *gin.Context) {
	var req deviceErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.scanner.DeviceLost(errors.New(req.Reason)))
}

// CloseScanner handles POST /api/scanner/close.
func (h *Handler) CloseScanner(c *gin.Context) {
	c.JSON(http.StatusOK, h.scanner.Close())
}

// GetPendingScans handles GET /api/scanner/pending.
func (h *Handler) GetPendingScans(c *gin.Context) {
	pending, err := h.scanner.Pending(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	if pending == nil {
		pending = []model.PendingScan{}
	}
	c.JSON(http.StatusOK, pending)
}

func respondScan(c *gin.Context, res scanner.Result, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error":       err.Error(),
			"outcome":     res.Outcome,
			"id":          res.ID,
			"suggestions": res.Suggestions,
		})
	case err != nil:
		abortWithError(c, err)
	case res.Outcome == scanner.OutcomeWaiting:
		c.JSON(http.StatusAccepted, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}
