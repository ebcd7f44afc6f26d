package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/KeelyW-11/school-equipment-inventory/internal/catalog"
	"github.com/KeelyW-11/school-equipment-inventory/internal/notification"
	"github.com/KeelyW-11/school-equipment-inventory/internal/scanner"
)

// Reloader re-reads the catalog from its configured source.
type Reloader interface {
	LoadOnce(ctx context.Context) catalog.LoadReport
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	catalog  *catalog.Catalog
	scanner  *scanner.Coordinator
	hub      *notification.Hub
	reloader Reloader
	db       *gorm.DB
	webpush  *webpush.Options
}

// NewHandler creates a new API handler. db and webpushOptions may be nil when push
// notifications are disabled.
func NewHandler(cat *catalog.Catalog, sc *scanner.Coordinator, hub *notification.Hub, reloader Reloader, db *gorm.DB, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		catalog:  cat,
		scanner:  sc,
		hub:      hub,
		reloader: reloader,
		db:       db,
		webpush:  webpushOptions,
	}
}

// abortWithError maps domain errors onto HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrNotReady):
		status = http.StatusServiceUnavailable
	case errors.Is(err, catalog.ErrNotConfirmed),
		errors.Is(err, scanner.ErrNotActive),
		errors.Is(err, scanner.ErrCooldown):
		status = http.StatusConflict
	case errors.Is(err, scanner.ErrThrottled):
		status = http.StatusTooManyRequests
	case errors.Is(err, scanner.ErrEmptyPayload):
		status = http.StatusBadRequest
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
