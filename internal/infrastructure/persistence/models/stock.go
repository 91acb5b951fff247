package models

import (
	"time"

	"github.com/erp/inventory/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockModel is the persistence model for the Stock aggregate root.
// The quantity columns are denormalized for listing and low-stock filters;
// they are recomputed from batches on load.
type StockModel struct {
	AggregateModel
	ProductID         uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_stocks_product_location,priority:1"`
	ProductCode       string              `gorm:"type:varchar(100);not null;index"`
	LocationID        uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_stocks_product_location,priority:2"`
	TotalQuantity     decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	AvailableQuantity decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	ReservedQuantity  decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	MinimumLevel      decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	MaximumLevel      decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	ReorderPoint      decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	IsActive          bool                `gorm:"not null"`
	LastMovementAt    *time.Time
	Batches           []BatchModel `gorm:"foreignKey:StockID;references:ID"`
}

// TableName returns the table name for GORM
func (StockModel) TableName() string {
	return "stocks"
}

// BatchModel stores one batch. Position keeps receipt order, which breaks
// FIFO ties between batches created at the same instant.
type BatchModel struct {
	StockID           uuid.UUID           `gorm:"type:uuid;primaryKey"`
	BatchNumber       string              `gorm:"type:varchar(100);primaryKey"`
	Position          int                 `gorm:"not null"`
	Quantity          decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	AvailableQuantity decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	ReservedQuantity  decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Status            string              `gorm:"type:varchar(20);not null;index"`
	ProductionDate    *time.Time
	ExpirationDate    *time.Time          `gorm:"index"`
	Supplier          string              `gorm:"type:varchar(200)"`
	Cost              decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Location          string              `gorm:"type:varchar(100)"`
	Metadata          map[string]string   `gorm:"type:text;serializer:json"`
	CreatedAt         time.Time           `gorm:"not null"`
	UpdatedAt         time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "stock_batches"
}

// MovementModel stores one ledger entry. (stock_id, sequence) is unique so a
// replayed save cannot duplicate history.
type MovementModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey"`
	StockID      uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_movements_stock_sequence,priority:1"`
	Sequence     int64             `gorm:"not null;uniqueIndex:idx_movements_stock_sequence,priority:2"`
	BatchNumber  string            `gorm:"type:varchar(100);not null"`
	MovementType string            `gorm:"type:varchar(20);not null"`
	Quantity     decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	Reason       string            `gorm:"type:varchar(500)"`
	ReferenceID  string            `gorm:"type:varchar(100);index"`
	OccurredAt   time.Time         `gorm:"not null"`
	Metadata     map[string]string `gorm:"type:text;serializer:json"`
}

// TableName returns the table name for GORM
func (MovementModel) TableName() string {
	return "stock_movements"
}

// All returns every model, in dependency order, for AutoMigrate in tests
func All() []any {
	return []any{&StockModel{}, &BatchModel{}, &MovementModel{}}
}

// FromDomain populates the stock row and its batch rows from the aggregate
func (m *StockModel) FromDomain(s *inventory.Stock) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.ProductID = s.ProductID
	m.ProductCode = s.ProductCode
	m.LocationID = s.LocationID
	m.TotalQuantity = s.TotalQuantity()
	m.AvailableQuantity = s.AvailableQuantity()
	m.ReservedQuantity = s.ReservedQuantity()
	m.MinimumLevel = nullDecimal(s.MinimumLevel())
	m.MaximumLevel = nullDecimal(s.MaximumLevel())
	m.ReorderPoint = nullDecimal(s.ReorderPoint())
	m.IsActive = s.IsActive()
	m.LastMovementAt = s.LastMovementAt()

	batches := s.Batches()
	m.Batches = make([]BatchModel, len(batches))
	for i, b := range batches {
		m.Batches[i].FromDomain(s.ID, i, b)
	}
}

// ToDomain rebuilds the aggregate. Pass nil movements for a ledger-less read model.
func (m *StockModel) ToDomain(movements []MovementModel) *inventory.Stock {
	state := inventory.StockState{
		ID:          m.ID,
		ProductID:   m.ProductID,
		ProductCode: m.ProductCode,
		LocationID:  m.LocationID,
		Thresholds: inventory.Thresholds{
			MinimumLevel: decimalPtr(m.MinimumLevel),
			MaximumLevel: decimalPtr(m.MaximumLevel),
			ReorderPoint: decimalPtr(m.ReorderPoint),
		},
		IsActive:       m.IsActive,
		LastMovementAt: m.LastMovementAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Version:        m.Version,
		Batches:        make([]*inventory.Batch, len(m.Batches)),
		Movements:      make([]inventory.Movement, len(movements)),
	}
	for i := range m.Batches {
		state.Batches[i] = m.Batches[i].ToDomain()
	}
	for i := range movements {
		state.Movements[i] = movements[i].ToDomain()
	}
	return inventory.RestoreStock(state)
}

// FromDomain populates the batch row
func (m *BatchModel) FromDomain(stockID uuid.UUID, position int, b *inventory.Batch) {
	m.StockID = stockID
	m.BatchNumber = b.BatchNumber
	m.Position = position
	m.Quantity = b.Quantity
	m.AvailableQuantity = b.AvailableQuantity
	m.ReservedQuantity = b.ReservedQuantity
	m.Status = b.Status.String()
	m.ProductionDate = b.ProductionDate
	m.ExpirationDate = b.ExpirationDate
	m.Supplier = b.Supplier
	m.Cost = b.Cost
	m.Location = b.Location
	m.Metadata = b.Metadata
	m.CreatedAt = b.CreatedAt
	m.UpdatedAt = b.UpdatedAt
}

// ToDomain converts the row to a domain batch
func (m *BatchModel) ToDomain() *inventory.Batch {
	return &inventory.Batch{
		BatchNumber:       m.BatchNumber,
		Quantity:          m.Quantity,
		AvailableQuantity: m.AvailableQuantity,
		ReservedQuantity:  m.ReservedQuantity,
		Status:            inventory.BatchStatus(m.Status),
		ProductionDate:    utcPtr(m.ProductionDate),
		ExpirationDate:    utcPtr(m.ExpirationDate),
		Supplier:          m.Supplier,
		Cost:              m.Cost,
		Location:          m.Location,
		Metadata:          m.Metadata,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

// MovementFromDomain converts a ledger entry to its row
func MovementFromDomain(mv inventory.Movement) MovementModel {
	return MovementModel{
		ID:           mv.ID,
		StockID:      mv.StockID,
		Sequence:     mv.Sequence,
		BatchNumber:  mv.BatchNumber,
		MovementType: mv.Type.String(),
		Quantity:     mv.Quantity,
		Reason:       mv.Reason,
		ReferenceID:  mv.ReferenceID,
		OccurredAt:   mv.Timestamp,
		Metadata:     mv.Metadata,
	}
}

// ToDomain converts the row to a ledger entry
func (m *MovementModel) ToDomain() inventory.Movement {
	return inventory.Movement{
		ID:          m.ID,
		StockID:     m.StockID,
		Sequence:    m.Sequence,
		BatchNumber: m.BatchNumber,
		Type:        inventory.MovementType(m.MovementType),
		Quantity:    m.Quantity,
		Reason:      m.Reason,
		ReferenceID: m.ReferenceID,
		Timestamp:   m.OccurredAt.UTC(),
		Metadata:    m.Metadata,
	}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
