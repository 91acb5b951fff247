package router

import (
	"github.com/erp/inventory/internal/interfaces/http/handler"
)

// StockRoutes maps the stock endpoints under /stocks
func StockRoutes(h *handler.StockHandler) *DomainGroup {
	return NewDomainGroup("stock", "/stocks").
		POST("", h.Create).
		GET("", h.List).
		GET("/lookup", h.Lookup).
		GET("/:id", h.GetByID).
		POST("/:id/batches", h.AddBatch).
		PATCH("/:id/batches/:batch_number", h.UpdateBatch).
		POST("/:id/reservations", h.Reserve).
		POST("/:id/releases", h.Release).
		POST("/:id/consumptions", h.Consume).
		PUT("/:id/thresholds", h.SetThresholds).
		POST("/:id/activate", h.Activate).
		POST("/:id/deactivate", h.Deactivate).
		GET("/:id/movements", h.ListMovements)
}
