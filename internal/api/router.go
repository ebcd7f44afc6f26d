package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/KeelyW-11/school-equipment-inventory/config"
	"github.com/KeelyW-11/school-equipment-inventory/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg *config.ServerConfig, responseCache *mw.ResponseCache) *gin.Engine {
	r := gin.Default()
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)
	// Flushed by the hub on every render, so entries never outlive a catalog change.
	caching := responseCache.Middleware()

	api := r.Group("/api")
	// Event polls are not counted against the client's request budget.
	api.GET("/events", handler.GetEvents)

	limited := api.Group("")
	limited.Use(rateLimiter)
	{
		limited.GET("/status", handler.GetStatus)

		limited.GET("/equipment", caching, handler.ListEquipment)
		limited.GET("/rooms", caching, handler.GetRooms)
		limited.GET("/stats", caching, handler.GetStats)
		limited.GET("/export", handler.ExportEquipment)
		limited.POST("/equipment/:id/toggle", handler.ToggleEquipment)
		limited.POST("/equipment/bulk-check", handler.BulkCheck)
		limited.POST("/equipment/reset", handler.ResetEquipment)
		limited.POST("/equipment/import", handler.ImportEquipment)
		limited.POST("/equipment/reload", handler.ReloadEquipment)

		limited.GET("/scanner", handler.GetScanner)
		limited.POST("/scanner/open", handler.OpenScanner)
		limited.POST("/scanner/decode", handler.DecodeScan)
		limited.POST("/scanner/manual", handler.ManualScan)
		limited.POST("/scanner/device-error", handler.ReportDeviceError)
		limited.POST("/scanner/close", handler.CloseScanner)
		limited.GET("/scanner/pending", handler.GetPendingScans)

		limited.GET("/subscriptions", handler.GetSubscription)
		limited.PUT("/subscriptions", handler.PutSubscription)
		limited.DELETE("/subscriptions", handler.DeleteSubscription)
		limited.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return cors.Default()
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
