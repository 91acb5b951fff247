package inventory

import (
	"time"

	"github.com/erp/inventory/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateStockRequest opens a stock for a product at a location
type CreateStockRequest struct {
	ProductID    uuid.UUID        `json:"product_id" binding:"required"`
	ProductCode  string           `json:"product_code" binding:"required,min=1,max=64"`
	LocationID   uuid.UUID        `json:"location_id" binding:"required"`
	MinimumLevel *decimal.Decimal `json:"minimum_level"`
	MaximumLevel *decimal.Decimal `json:"maximum_level"`
	ReorderPoint *decimal.Decimal `json:"reorder_point"`
}

// AddBatchRequest receives a batch into a stock
type AddBatchRequest struct {
	BatchNumber    string            `json:"batch_number" binding:"required,min=1,max=64"`
	Quantity       decimal.Decimal   `json:"quantity" binding:"required"`
	ProductionDate *time.Time        `json:"production_date"`
	ExpirationDate *time.Time        `json:"expiration_date"`
	Supplier       string            `json:"supplier" binding:"max=128"`
	Cost           *decimal.Decimal  `json:"cost"`
	Location       string            `json:"location" binding:"max=64"`
	Metadata       map[string]string `json:"metadata"`
}

// UpdateBatchRequest overwrites batch attributes. Omitted fields are kept.
type UpdateBatchRequest struct {
	Quantity       *decimal.Decimal  `json:"quantity"`
	ExpirationDate *time.Time        `json:"expiration_date"`
	Supplier       *string           `json:"supplier" binding:"omitempty,max=128"`
	Cost           *decimal.Decimal  `json:"cost"`
	Location       *string           `json:"location" binding:"omitempty,max=64"`
	Status         *string           `json:"status" binding:"omitempty,batchstatus"`
	Metadata       map[string]string `json:"metadata"`
	Reason         string            `json:"reason" binding:"max=255"`
}

// ReserveRequest reserves quantity for an order
type ReserveRequest struct {
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	OrderID    string          `json:"order_id" binding:"required,max=128"`
	PreferFEFO *bool           `json:"prefer_fefo"`
}

// BatchQuantityRequest targets a quantity on one batch, for release and consumption
type BatchQuantityRequest struct {
	BatchNumber string          `json:"batch_number" binding:"required,max=64"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	OrderID     string          `json:"order_id" binding:"required,max=128"`
}

// SetThresholdsRequest replaces the stock thresholds. Nil clears a threshold.
type SetThresholdsRequest struct {
	MinimumLevel *decimal.Decimal `json:"minimum_level"`
	MaximumLevel *decimal.Decimal `json:"maximum_level"`
	ReorderPoint *decimal.Decimal `json:"reorder_point"`
}

// StockListFilter represents filter options for stock listing
type StockListFilter struct {
	ProductID   *uuid.UUID `form:"product_id"`
	LocationID  *uuid.UUID `form:"location_id"`
	ProductCode string     `form:"product_code"`
	ActiveOnly  bool       `form:"active_only"`
	LowStock    bool       `form:"low_stock"`
	Page        int        `form:"page" binding:"omitempty,min=1"`
	PageSize    int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string     `form:"order_by"`
	OrderDir    string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// MovementListFilter represents filter options for a stock's ledger
type MovementListFilter struct {
	BatchNumber  string `form:"batch_number"`
	MovementType string `form:"movement_type"`
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PageSize     int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy      string `form:"order_by"`
	OrderDir     string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	BatchNumber       string            `json:"batch_number"`
	Quantity          decimal.Decimal   `json:"quantity"`
	AvailableQuantity decimal.Decimal   `json:"available_quantity"`
	ReservedQuantity  decimal.Decimal   `json:"reserved_quantity"`
	Status            string            `json:"status"`
	ProductionDate    *time.Time        `json:"production_date,omitempty"`
	ExpirationDate    *time.Time        `json:"expiration_date,omitempty"`
	Supplier          string            `json:"supplier,omitempty"`
	Cost              *decimal.Decimal  `json:"cost,omitempty"`
	Location          string            `json:"location,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// StockResponse represents a stock in API responses
type StockResponse struct {
	ID                uuid.UUID        `json:"id"`
	ProductID         uuid.UUID        `json:"product_id"`
	ProductCode       string           `json:"product_code"`
	LocationID        uuid.UUID        `json:"location_id"`
	TotalQuantity     decimal.Decimal  `json:"total_quantity"`
	AvailableQuantity decimal.Decimal  `json:"available_quantity"`
	ReservedQuantity  decimal.Decimal  `json:"reserved_quantity"`
	MinimumLevel      *decimal.Decimal `json:"minimum_level,omitempty"`
	MaximumLevel      *decimal.Decimal `json:"maximum_level,omitempty"`
	ReorderPoint      *decimal.Decimal `json:"reorder_point,omitempty"`
	IsActive          bool             `json:"is_active"`
	NeedsReorder      bool             `json:"needs_reorder"`
	IsOverstocked     bool             `json:"is_overstocked"`
	LastMovementAt    *time.Time       `json:"last_movement_at,omitempty"`
	Batches           []BatchResponse  `json:"batches"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	Version           int              `json:"version"`
}

// MovementResponse represents a ledger entry in API responses
type MovementResponse struct {
	ID          uuid.UUID         `json:"id"`
	StockID     uuid.UUID         `json:"stock_id"`
	Sequence    int64             `json:"sequence"`
	BatchNumber string            `json:"batch_number"`
	Type        string            `json:"movement_type"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Reason      string            `json:"reason,omitempty"`
	ReferenceID string            `json:"reference_id,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ReservationResponse is the receipt of a successful reservation
type ReservationResponse struct {
	OrderID     string                 `json:"order_id"`
	Allocations []inventory.Allocation `json:"allocations"`
	Stock       StockResponse          `json:"stock"`
}

// ToStockResponse converts a domain Stock to StockResponse
func ToStockResponse(s *inventory.Stock) StockResponse {
	batches := s.Batches()
	resp := StockResponse{
		ID:                s.ID,
		ProductID:         s.ProductID,
		ProductCode:       s.ProductCode,
		LocationID:        s.LocationID,
		TotalQuantity:     s.TotalQuantity(),
		AvailableQuantity: s.AvailableQuantity(),
		ReservedQuantity:  s.ReservedQuantity(),
		MinimumLevel:      s.MinimumLevel(),
		MaximumLevel:      s.MaximumLevel(),
		ReorderPoint:      s.ReorderPoint(),
		IsActive:          s.IsActive(),
		NeedsReorder:      s.NeedsReorder(),
		IsOverstocked:     s.IsOverstocked(),
		LastMovementAt:    s.LastMovementAt(),
		Batches:           make([]BatchResponse, len(batches)),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		Version:           s.GetVersion(),
	}
	for i, b := range batches {
		resp.Batches[i] = ToBatchResponse(b)
	}
	return resp
}

// ToStockResponses converts a slice of stocks
func ToStockResponses(stocks []*inventory.Stock) []StockResponse {
	out := make([]StockResponse, len(stocks))
	for i, s := range stocks {
		out[i] = ToStockResponse(s)
	}
	return out
}

// ToBatchResponse converts a domain Batch to BatchResponse
func ToBatchResponse(b *inventory.Batch) BatchResponse {
	resp := BatchResponse{
		BatchNumber:       b.BatchNumber,
		Quantity:          b.Quantity,
		AvailableQuantity: b.AvailableQuantity,
		ReservedQuantity:  b.ReservedQuantity,
		Status:            b.Status.String(),
		ProductionDate:    b.ProductionDate,
		ExpirationDate:    b.ExpirationDate,
		Supplier:          b.Supplier,
		Location:          b.Location,
		Metadata:          b.Metadata,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
	if b.Cost.Valid {
		cost := b.Cost.Decimal
		resp.Cost = &cost
	}
	return resp
}

// ToMovementResponse converts a domain Movement to MovementResponse
func ToMovementResponse(m inventory.Movement) MovementResponse {
	return MovementResponse{
		ID:          m.ID,
		StockID:     m.StockID,
		Sequence:    m.Sequence,
		BatchNumber: m.BatchNumber,
		Type:        m.Type.String(),
		Quantity:    m.Quantity,
		Reason:      m.Reason,
		ReferenceID: m.ReferenceID,
		Timestamp:   m.Timestamp,
		Metadata:    m.Metadata,
	}
}

func (r AddBatchRequest) toDomain() inventory.NewBatch {
	data := inventory.NewBatch{
		BatchNumber:    r.BatchNumber,
		Quantity:       r.Quantity,
		ProductionDate: r.ProductionDate,
		ExpirationDate: r.ExpirationDate,
		Supplier:       r.Supplier,
		Location:       r.Location,
		Metadata:       r.Metadata,
	}
	if r.Cost != nil {
		data.Cost = decimal.NewNullDecimal(*r.Cost)
	}
	return data
}

func (r UpdateBatchRequest) toDomain() inventory.BatchChanges {
	changes := inventory.BatchChanges{
		Quantity:       r.Quantity,
		ExpirationDate: r.ExpirationDate,
		Supplier:       r.Supplier,
		Cost:           r.Cost,
		Location:       r.Location,
		Metadata:       r.Metadata,
		Reason:         r.Reason,
	}
	if r.Status != nil {
		status := inventory.BatchStatus(*r.Status)
		changes.Status = &status
	}
	return changes
}

func (r SetThresholdsRequest) toDomain() inventory.Thresholds {
	return inventory.Thresholds{
		MinimumLevel: r.MinimumLevel,
		MaximumLevel: r.MaximumLevel,
		ReorderPoint: r.ReorderPoint,
	}
}
