package inventory

import (
	"time"

	"github.com/erp/inventory/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeStock is the aggregate type carried by every stock event
const AggregateTypeStock = "Stock"

// Event type constants
const (
	EventTypeStockCreated     = "StockCreated"
	EventTypeBatchAdded       = "BatchAdded"
	EventTypeBatchUpdated     = "BatchUpdated"
	EventTypeStockUpdated     = "StockUpdated"
	EventTypeMovementRecorded = "MovementRecorded"
	EventTypeLowStockAlert    = "LowStockAlert"
	EventTypeExpirationAlert  = "ExpirationAlert"
)

// AlertEventTypes lists the alert events emitted by the evaluator
func AlertEventTypes() []string {
	return []string{EventTypeLowStockAlert, EventTypeExpirationAlert}
}

// StockRef identifies the stock an event belongs to
type StockRef struct {
	StockID     uuid.UUID `json:"stock_id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductCode string    `json:"product_code"`
	LocationID  uuid.UUID `json:"location_id"`
}

func (s *Stock) ref() StockRef {
	return StockRef{
		StockID:     s.ID,
		ProductID:   s.ProductID,
		ProductCode: s.ProductCode,
		LocationID:  s.LocationID,
	}
}

func (s *Stock) baseEvent(eventType string, at time.Time) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, AggregateTypeStock, s.ID, at)
}

// StockCreatedEvent is raised when an empty stock is opened for a product/location
type StockCreatedEvent struct {
	shared.BaseDomainEvent
	StockRef
}

// BatchAddedEvent is raised when a batch is received into a stock
type BatchAddedEvent struct {
	shared.BaseDomainEvent
	StockRef
	BatchNumber    string          `json:"batch_number"`
	Quantity       decimal.Decimal `json:"quantity"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
}

// BatchUpdatedEvent is raised when batch attributes are overwritten
type BatchUpdatedEvent struct {
	shared.BaseDomainEvent
	StockRef
	BatchNumber    string          `json:"batch_number"`
	Status         BatchStatus     `json:"status"`
	PreviousStatus BatchStatus     `json:"previous_status"`
	Quantity       decimal.Decimal `json:"quantity"`
	QuantityDelta  decimal.Decimal `json:"quantity_delta"`
}

// StockUpdatedEvent snapshots quantities and configuration after a change
type StockUpdatedEvent struct {
	shared.BaseDomainEvent
	StockRef
	Cause             string           `json:"cause"`
	TotalQuantity     decimal.Decimal  `json:"total_quantity"`
	AvailableQuantity decimal.Decimal  `json:"available_quantity"`
	ReservedQuantity  decimal.Decimal  `json:"reserved_quantity"`
	MinimumLevel      *decimal.Decimal `json:"minimum_level,omitempty"`
	MaximumLevel      *decimal.Decimal `json:"maximum_level,omitempty"`
	ReorderPoint      *decimal.Decimal `json:"reorder_point,omitempty"`
	IsActive          bool             `json:"is_active"`
}

// MovementRecordedEvent is raised for every ledger entry
type MovementRecordedEvent struct {
	shared.BaseDomainEvent
	StockRef
	MovementID  uuid.UUID       `json:"movement_id"`
	Sequence    int64           `json:"sequence"`
	BatchNumber string          `json:"batch_number"`
	Type        MovementType    `json:"movement_type"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reason      string          `json:"reason,omitempty"`
	ReferenceID string          `json:"reference_id,omitempty"`
}

// LowStockAlertEvent is raised each time available quantity is at or below the minimum level
type LowStockAlertEvent struct {
	shared.BaseDomainEvent
	StockRef
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	MinimumLevel      decimal.Decimal `json:"minimum_level"`
}

// ExpirationAlertEvent is raised for each available batch inside the expiration window
type ExpirationAlertEvent struct {
	shared.BaseDomainEvent
	StockRef
	BatchNumber       string          `json:"batch_number"`
	ExpirationDate    time.Time       `json:"expiration_date"`
	DaysUntilExpiry   int             `json:"days_until_expiry"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
}

func (s *Stock) recordStockCreated(at time.Time) {
	s.AddDomainEvent(&StockCreatedEvent{
		BaseDomainEvent: s.baseEvent(EventTypeStockCreated, at),
		StockRef:        s.ref(),
	})
}

func (s *Stock) recordBatchAdded(b *Batch, at time.Time) {
	s.AddDomainEvent(&BatchAddedEvent{
		BaseDomainEvent: s.baseEvent(EventTypeBatchAdded, at),
		StockRef:        s.ref(),
		BatchNumber:     b.BatchNumber,
		Quantity:        b.Quantity,
		ExpirationDate:  copyTime(b.ExpirationDate),
	})
}

func (s *Stock) recordBatchUpdated(b *Batch, previous BatchStatus, delta decimal.Decimal, at time.Time) {
	s.AddDomainEvent(&BatchUpdatedEvent{
		BaseDomainEvent: s.baseEvent(EventTypeBatchUpdated, at),
		StockRef:        s.ref(),
		BatchNumber:     b.BatchNumber,
		Status:          b.Status,
		PreviousStatus:  previous,
		Quantity:        b.Quantity,
		QuantityDelta:   delta,
	})
}

func (s *Stock) recordStockUpdated(cause string, at time.Time) {
	s.AddDomainEvent(&StockUpdatedEvent{
		BaseDomainEvent:   s.baseEvent(EventTypeStockUpdated, at),
		StockRef:          s.ref(),
		Cause:             cause,
		TotalQuantity:     s.totalQuantity,
		AvailableQuantity: s.availableQuantity,
		ReservedQuantity:  s.reservedQuantity,
		MinimumLevel:      copyDecimal(s.minimumLevel),
		MaximumLevel:      copyDecimal(s.maximumLevel),
		ReorderPoint:      copyDecimal(s.reorderPoint),
		IsActive:          s.isActive,
	})
}

func (s *Stock) recordMovement(m Movement) {
	s.AddDomainEvent(&MovementRecordedEvent{
		BaseDomainEvent: s.baseEvent(EventTypeMovementRecorded, m.Timestamp),
		StockRef:        s.ref(),
		MovementID:      m.ID,
		Sequence:        m.Sequence,
		BatchNumber:     m.BatchNumber,
		Type:            m.Type,
		Quantity:        m.Quantity,
		Reason:          m.Reason,
		ReferenceID:     m.ReferenceID,
	})
}

func (s *Stock) recordLowStock(c LowStockCondition, at time.Time) {
	s.AddDomainEvent(&LowStockAlertEvent{
		BaseDomainEvent:   s.baseEvent(EventTypeLowStockAlert, at),
		StockRef:          s.ref(),
		AvailableQuantity: c.AvailableQuantity,
		MinimumLevel:      c.MinimumLevel,
	})
}

func (s *Stock) recordExpiring(e ExpiringBatch, at time.Time) {
	s.AddDomainEvent(&ExpirationAlertEvent{
		BaseDomainEvent:   s.baseEvent(EventTypeExpirationAlert, at),
		StockRef:          s.ref(),
		BatchNumber:       e.BatchNumber,
		ExpirationDate:    e.ExpirationDate,
		DaysUntilExpiry:   e.DaysUntilExpiry,
		AvailableQuantity: e.AvailableQuantity,
	})
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
