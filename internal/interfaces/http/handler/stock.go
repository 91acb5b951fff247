package handler

import (
	"context"

	inventoryapp "github.com/erp/inventory/internal/application/inventory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StockService is the use-case surface the stock endpoints call
type StockService interface {
	CreateStock(ctx context.Context, req inventoryapp.CreateStockRequest) (*inventoryapp.StockResponse, error)
	GetStock(ctx context.Context, id uuid.UUID) (*inventoryapp.StockResponse, error)
	GetStockByProductLocation(ctx context.Context, productID, locationID uuid.UUID) (*inventoryapp.StockResponse, error)
	ListStocks(ctx context.Context, filter inventoryapp.StockListFilter) ([]inventoryapp.StockResponse, int64, error)
	ListMovements(ctx context.Context, stockID uuid.UUID, filter inventoryapp.MovementListFilter) ([]inventoryapp.MovementResponse, int64, error)
	AddBatch(ctx context.Context, stockID uuid.UUID, req inventoryapp.AddBatchRequest) (*inventoryapp.StockResponse, error)
	UpdateBatch(ctx context.Context, stockID uuid.UUID, batchNumber string, req inventoryapp.UpdateBatchRequest) (*inventoryapp.StockResponse, error)
	Reserve(ctx context.Context, stockID uuid.UUID, req inventoryapp.ReserveRequest) (*inventoryapp.ReservationResponse, error)
	Release(ctx context.Context, stockID uuid.UUID, req inventoryapp.BatchQuantityRequest) (*inventoryapp.StockResponse, error)
	Consume(ctx context.Context, stockID uuid.UUID, req inventoryapp.BatchQuantityRequest) (*inventoryapp.StockResponse, error)
	SetThresholds(ctx context.Context, stockID uuid.UUID, req inventoryapp.SetThresholdsRequest) (*inventoryapp.StockResponse, error)
	Activate(ctx context.Context, stockID uuid.UUID) (*inventoryapp.StockResponse, error)
	Deactivate(ctx context.Context, stockID uuid.UUID) (*inventoryapp.StockResponse, error)
}

// StockHandler handles the stock endpoints
type StockHandler struct {
	BaseHandler
	stockService StockService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stockService StockService) *StockHandler {
	return &StockHandler{stockService: stockService}
}

// Create opens an empty stock for a product at a location.
// POST /stocks
func (h *StockHandler) Create(c *gin.Context) {
	var req inventoryapp.CreateStockRequest
	if !h.bindJSON(c, &req) {
		return
	}

	stock, err := h.stockService.CreateStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, stock)
}

// List returns stocks page by page.
// GET /stocks
func (h *StockHandler) List(c *gin.Context) {
	var filter inventoryapp.StockListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	stocks, total, err := h.stockService.ListStocks(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, stocks, total, filter.Page, filter.PageSize)
}

// GetByID returns one stock with its batches.
// GET /stocks/:id
func (h *StockHandler) GetByID(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	stock, err := h.stockService.GetStock(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stock)
}

type lookupQuery struct {
	ProductID  string `form:"product_id" binding:"required,uuid"`
	LocationID string `form:"location_id" binding:"required,uuid"`
}

// Lookup finds the stock of a product at a location.
// GET /stocks/lookup?product_id=&location_id=
func (h *StockHandler) Lookup(c *gin.Context) {
	var q lookupQuery
	if !h.bindQuery(c, &q) {
		return
	}

	stock, err := h.stockService.GetStockByProductLocation(c.Request.Context(),
		uuid.MustParse(q.ProductID), uuid.MustParse(q.LocationID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stock)
}

// AddBatch receives a new batch into the stock.
// POST /stocks/:id/batches
func (h *StockHandler) AddBatch(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.AddBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	stock, err := h.stockService.AddBatch(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, stock)
}

// UpdateBatch corrects batch attributes.
// PATCH /stocks/:id/batches/:batch_number
func (h *StockHandler) UpdateBatch(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.UpdateBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	stock, err := h.stockService.UpdateBatch(c.Request.Context(), id, c.Param("batch_number"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stock)
}

// Reserve allocates quantity across batches for an order.
// POST /stocks/:id/reservations
func (h *StockHandler) Reserve(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ReserveRequest
	if !h.bindJSON(c, &req) {
		return
	}

	reservation, err := h.stockService.Reserve(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, reservation)
}

// Release returns reserved quantity of one batch to available.
// POST /stocks/:id/releases
func (h *StockHandler) Release(c *gin.Context) {
	h.batchQuantity(c, h.stockService.Release)
}

// Consume removes reserved quantity of one batch from stock.
// POST /stocks/:id/consumptions
func (h *StockHandler) Consume(c *gin.Context) {
	h.batchQuantity(c, h.stockService.Consume)
}

func (h *StockHandler) batchQuantity(c *gin.Context,
	op func(context.Context, uuid.UUID, inventoryapp.BatchQuantityRequest) (*inventoryapp.StockResponse, error)) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.BatchQuantityRequest
	if !h.bindJSON(c, &req) {
		return
	}

	stock, err := op(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stock)
}

// SetThresholds replaces the minimum, maximum and reorder levels.
// PUT /stocks/:id/thresholds
func (h *StockHandler) SetThresholds(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.SetThresholdsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	stock, err := h.stockService.SetThresholds(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stock)
}

// Activate reopens a stock for reservations.
// POST /stocks/:id/activate
func (h *StockHandler) Activate(c *gin.Context) {
	h.toggle(c, h.stockService.Activate)
}

// Deactivate closes a stock for reservations.
// POST /stocks/:id/deactivate
func (h *StockHandler) Deactivate(c *gin.Context) {
	h.toggle(c, h.stockService.Deactivate)
}

func (h *StockHandler) toggle(c *gin.Context, op func(context.Context, uuid.UUID) (*inventoryapp.StockResponse, error)) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	stock, err := op(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stock)
}

// ListMovements returns the stock ledger page by page.
// GET /stocks/:id/movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var filter inventoryapp.MovementListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}

	movements, total, err := h.stockService.ListMovements(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, movements, total, filter.Page, filter.PageSize)
}
