package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/inventory/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// clock is the time source for every mutation; tests replace it
var clock = func() time.Time { return time.Now().UTC() }

// StockUpdated causes
const (
	CauseBatchAdded   = "batch_added"
	CauseBatchUpdated = "batch_updated"
	CauseReservation  = "reservation"
	CauseRelease      = "release"
	CauseConsumption  = "consumption"
	CauseThresholds   = "thresholds"
	CauseActivated    = "activated"
	CauseDeactivated  = "deactivated"
)

// Thresholds groups the optional stock level thresholds
type Thresholds struct {
	MinimumLevel *decimal.Decimal
	MaximumLevel *decimal.Decimal
	ReorderPoint *decimal.Decimal
}

// Stock is the aggregate root holding every batch of one product at one location.
// Total, available and reserved quantities are derived from the batches after
// each mutation and cannot be set directly.
type Stock struct {
	shared.BaseAggregateRoot
	ProductID   uuid.UUID
	ProductCode string
	LocationID  uuid.UUID

	batches           []*Batch
	totalQuantity     decimal.Decimal
	availableQuantity decimal.Decimal
	reservedQuantity  decimal.Decimal
	minimumLevel      *decimal.Decimal
	maximumLevel      *decimal.Decimal
	reorderPoint      *decimal.Decimal
	isActive          bool
	ledger            MovementLedger
	lastMovementAt    *time.Time
}

// NewStock opens an empty, active stock for a product at a location
func NewStock(productID uuid.UUID, productCode string, locationID uuid.UUID) (*Stock, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LOCATION", "Location ID cannot be empty")
	}
	productCode = strings.TrimSpace(productCode)
	if productCode == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product code cannot be empty")
	}

	at := clock()
	s := &Stock{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(shared.NewBaseEntityAt(at)),
		ProductID:         productID,
		ProductCode:       productCode,
		LocationID:        locationID,
		batches:           make([]*Batch, 0),
		totalQuantity:     decimal.Zero,
		availableQuantity: decimal.Zero,
		reservedQuantity:  decimal.Zero,
		isActive:          true,
	}
	s.recordStockCreated(at)
	return s, nil
}

// StockState is the full stored state of a stock, used to rebuild it
type StockState struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	ProductCode    string
	LocationID     uuid.UUID
	Batches        []*Batch
	Thresholds     Thresholds
	IsActive       bool
	Movements      []Movement
	LastMovementAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int
}

// RestoreStock rebuilds a stock from storage. Stored aggregate quantities are
// ignored and recomputed from the batches.
func RestoreStock(state StockState) *Stock {
	s := &Stock{
		BaseAggregateRoot: shared.RestoreBaseAggregateRoot(shared.BaseEntity{
			ID:        state.ID,
			CreatedAt: state.CreatedAt,
			UpdatedAt: state.UpdatedAt,
		}, state.Version),
		ProductID:      state.ProductID,
		ProductCode:    state.ProductCode,
		LocationID:     state.LocationID,
		batches:        make([]*Batch, 0, len(state.Batches)),
		minimumLevel:   copyDecimal(state.Thresholds.MinimumLevel),
		maximumLevel:   copyDecimal(state.Thresholds.MaximumLevel),
		reorderPoint:   copyDecimal(state.Thresholds.ReorderPoint),
		isActive:       state.IsActive,
		ledger:         RestoreMovementLedger(state.Movements),
		lastMovementAt: copyTime(state.LastMovementAt),
	}
	for _, b := range state.Batches {
		s.batches = append(s.batches, b.Clone())
	}
	s.recalculate()
	return s
}

// TotalQuantity is the sum of quantity over non-consumed batches
func (s *Stock) TotalQuantity() decimal.Decimal { return s.totalQuantity }

// AvailableQuantity is the sum of available quantity over AVAILABLE batches
func (s *Stock) AvailableQuantity() decimal.Decimal { return s.availableQuantity }

// ReservedQuantity is the sum of reserved quantity over AVAILABLE batches
func (s *Stock) ReservedQuantity() decimal.Decimal { return s.reservedQuantity }

func (s *Stock) MinimumLevel() *decimal.Decimal { return copyDecimal(s.minimumLevel) }
func (s *Stock) MaximumLevel() *decimal.Decimal { return copyDecimal(s.maximumLevel) }
func (s *Stock) ReorderPoint() *decimal.Decimal { return copyDecimal(s.reorderPoint) }
func (s *Stock) IsActive() bool                 { return s.isActive }
func (s *Stock) LastMovementAt() *time.Time     { return copyTime(s.lastMovementAt) }

// Thresholds returns the configured thresholds
func (s *Stock) Thresholds() Thresholds {
	return Thresholds{
		MinimumLevel: s.MinimumLevel(),
		MaximumLevel: s.MaximumLevel(),
		ReorderPoint: s.ReorderPoint(),
	}
}

// Batches returns copies of all batches in insertion order
func (s *Stock) Batches() []*Batch {
	out := make([]*Batch, len(s.batches))
	for i, b := range s.batches {
		out[i] = b.Clone()
	}
	return out
}

// Batch returns a copy of the batch with the given number
func (s *Stock) Batch(batchNumber string) (*Batch, bool) {
	b := s.findBatch(batchNumber)
	if b == nil {
		return nil, false
	}
	return b.Clone(), true
}

// Movements returns the whole ledger in append order
func (s *Stock) Movements() []Movement {
	return s.ledger.Entries()
}

// PendingMovements returns ledger entries not yet stored
func (s *Stock) PendingMovements() []Movement {
	return s.ledger.Pending()
}

// MarkPersisted records that storage holds the current version and ledger
func (s *Stock) MarkPersisted() {
	s.BaseAggregateRoot.MarkPersisted()
	s.ledger.MarkPersisted()
}

// NeedsReorder reports whether available quantity is at or below the reorder point
func (s *Stock) NeedsReorder() bool {
	return s.reorderPoint != nil && s.availableQuantity.LessThanOrEqual(*s.reorderPoint)
}

// IsOverstocked reports whether total quantity exceeds the maximum level
func (s *Stock) IsOverstocked() bool {
	return s.maximumLevel != nil && s.totalQuantity.GreaterThan(*s.maximumLevel)
}

// AddBatch receives a new batch. The batch starts AVAILABLE with its whole
// quantity available, and an INBOUND movement is recorded.
func (s *Stock) AddBatch(data NewBatch) error {
	data.BatchNumber = strings.TrimSpace(data.BatchNumber)
	if data.BatchNumber == "" {
		return shared.NewDomainError("INVALID_BATCH_NUMBER", "Batch number cannot be empty")
	}
	if s.findBatch(data.BatchNumber) != nil {
		return shared.NewDomainError(ErrDuplicateBatch.Code,
			fmt.Sprintf("batch %s already exists in stock %s", data.BatchNumber, s.ID))
	}
	if data.Quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(ErrInvalidQuantity.Code, "Batch quantity must be positive")
	}
	if err := checkQuantityScale("batch quantity", data.Quantity); err != nil {
		return err
	}
	if data.Cost.Valid {
		if data.Cost.Decimal.IsNegative() {
			return shared.NewDomainError(ErrInvalidQuantity.Code, "Batch cost cannot be negative")
		}
		if err := checkQuantityScale("batch cost", data.Cost.Decimal); err != nil {
			return err
		}
	}

	at := clock()
	b := newBatch(data, at)
	s.batches = append(s.batches, b)
	s.recalculate()

	s.recordBatchAdded(b, at)
	s.appendMovement(b.BatchNumber, MovementTypeInbound, b.Quantity, "batch received", "", data.Metadata, at)
	s.finish(CauseBatchAdded, at, true)
	return nil
}

// ReserveStock reserves quantity for an order across as many batches as needed.
// The request is all-or-nothing and the returned allocations are the caller's
// receipt for later release or consumption.
func (s *Stock) ReserveStock(quantity decimal.Decimal, orderID string, preferFEFO bool) ([]Allocation, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(ErrInvalidQuantity.Code, "Reservation quantity must be positive")
	}
	if err := checkQuantityScale("reservation quantity", quantity); err != nil {
		return nil, err
	}
	if !s.isActive {
		return nil, shared.NewDomainError(ErrStockInactive.Code,
			fmt.Sprintf("stock %s is inactive and cannot be reserved", s.ID))
	}
	if s.availableQuantity.LessThan(quantity) {
		return nil, shared.NewDomainError(ErrInsufficientStock.Code,
			fmt.Sprintf("requested %s but only %s available", quantity, s.availableQuantity))
	}

	plan := PlanAllocation(quantity, s.batches, preferFEFO)
	if !plan.IsComplete() {
		return nil, shared.NewDomainError(ErrInsufficientStock.Code,
			fmt.Sprintf("requested %s but batches can only supply %s", quantity, plan.Allocated))
	}

	at := clock()
	for _, a := range plan.Allocations {
		s.findBatch(a.BatchNumber).reserve(a.Quantity, at)
	}
	s.recalculate()
	for _, a := range plan.Allocations {
		s.appendMovement(a.BatchNumber, MovementTypeReservation, a.Quantity, "reserved for order", orderID, nil, at)
	}
	s.finish(CauseReservation, at, true)
	return plan.Allocations, nil
}

// ReleaseReservation returns reserved units on one batch to available
func (s *Stock) ReleaseReservation(batchNumber string, quantity decimal.Decimal, orderID string) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(ErrInvalidQuantity.Code, "Release quantity must be positive")
	}
	if err := checkQuantityScale("release quantity", quantity); err != nil {
		return err
	}
	b, err := s.batchOrError(batchNumber)
	if err != nil {
		return err
	}
	if quantity.GreaterThan(b.ReservedQuantity) {
		return shared.NewDomainError(ErrOverRelease.Code,
			fmt.Sprintf("cannot release %s from batch %s, only %s reserved", quantity, batchNumber, b.ReservedQuantity))
	}

	at := clock()
	b.release(quantity, at)
	s.recalculate()
	s.appendMovement(batchNumber, MovementTypeRelease, quantity, "reservation released", orderID, nil, at)
	s.finish(CauseRelease, at, true)
	return nil
}

// ConsumeStock ships reserved units out of one batch. A batch drained to zero
// becomes CONSUMED.
func (s *Stock) ConsumeStock(batchNumber string, quantity decimal.Decimal, orderID string) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(ErrInvalidQuantity.Code, "Consumption quantity must be positive")
	}
	if err := checkQuantityScale("consumption quantity", quantity); err != nil {
		return err
	}
	b, err := s.batchOrError(batchNumber)
	if err != nil {
		return err
	}
	if quantity.GreaterThan(b.ReservedQuantity) {
		return shared.NewDomainError(ErrOverConsume.Code,
			fmt.Sprintf("cannot consume %s from batch %s, only %s reserved", quantity, batchNumber, b.ReservedQuantity))
	}

	at := clock()
	b.consume(quantity, at)
	s.recalculate()
	s.appendMovement(batchNumber, MovementTypeOutbound, quantity, "consumed for order", orderID, nil, at)
	s.finish(CauseConsumption, at, true)
	return nil
}

// UpdateBatch overwrites batch attributes. A new quantity is an absolute
// correction recorded as an ADJUSTMENT movement carrying the signed delta.
func (s *Stock) UpdateBatch(batchNumber string, changes BatchChanges) error {
	b, err := s.batchOrError(batchNumber)
	if err != nil {
		return err
	}
	if changes.IsEmpty() {
		return nil
	}
	if err := b.validateChanges(changes); err != nil {
		return err
	}

	at := clock()
	previous := b.Status
	delta := b.applyChanges(changes, at)
	s.recalculate()

	s.recordBatchUpdated(b, previous, delta, at)
	if !delta.IsZero() {
		reason := changes.Reason
		if reason == "" {
			reason = "quantity correction"
		}
		s.appendMovement(batchNumber, MovementTypeAdjustment, delta, reason, "", nil, at)
	}
	s.finish(CauseBatchUpdated, at, true)
	return nil
}

// SetMinimumLevel sets or clears (nil) the minimum level
func (s *Stock) SetMinimumLevel(level *decimal.Decimal) error {
	t := s.Thresholds()
	t.MinimumLevel = level
	return s.SetThresholds(t)
}

// SetMaximumLevel sets or clears (nil) the maximum level
func (s *Stock) SetMaximumLevel(level *decimal.Decimal) error {
	t := s.Thresholds()
	t.MaximumLevel = level
	return s.SetThresholds(t)
}

// SetReorderPoint sets or clears (nil) the reorder point
func (s *Stock) SetReorderPoint(level *decimal.Decimal) error {
	t := s.Thresholds()
	t.ReorderPoint = level
	return s.SetThresholds(t)
}

// SetThresholds replaces all thresholds at once and re-runs the low-stock check
func (s *Stock) SetThresholds(t Thresholds) error {
	for _, level := range []*decimal.Decimal{t.MinimumLevel, t.MaximumLevel, t.ReorderPoint} {
		if level != nil && level.IsNegative() {
			return ErrInvalidThreshold
		}
		if level != nil && exceedsScale(*level) {
			return shared.NewDomainError(ErrInvalidThreshold.Code,
				fmt.Sprintf("threshold %s has more than %d decimal places", level, QuantityScale))
		}
	}

	at := clock()
	s.minimumLevel = copyDecimal(t.MinimumLevel)
	s.maximumLevel = copyDecimal(t.MaximumLevel)
	s.reorderPoint = copyDecimal(t.ReorderPoint)
	s.finish(CauseThresholds, at, false)
	return nil
}

// Activate puts a retired stock back into allocation
func (s *Stock) Activate() {
	if s.isActive {
		return
	}
	s.isActive = true
	s.finish(CauseActivated, clock(), false)
}

// Deactivate retires the stock; it keeps its batches but can no longer be reserved
func (s *Stock) Deactivate() {
	if !s.isActive {
		return
	}
	s.isActive = false
	s.finish(CauseDeactivated, clock(), false)
}

// RefreshAlerts re-runs the alert evaluator without changing state or version
func (s *Stock) RefreshAlerts() {
	s.evaluateAlerts(clock(), true)
}

// ExpiredAvailableBatches returns the numbers of AVAILABLE batches whose
// expiration date is at or before t
func (s *Stock) ExpiredAvailableBatches(t time.Time) []string {
	var out []string
	for _, b := range s.batches {
		if b.Status == BatchStatusAvailable && b.IsExpiredAt(t) {
			out = append(out, b.BatchNumber)
		}
	}
	return out
}

// CheckInvariants verifies every batch and the derived aggregate quantities
func (s *Stock) CheckInvariants() error {
	total, available, reserved := s.sums()
	for _, b := range s.batches {
		if err := b.CheckInvariants(); err != nil {
			return err
		}
	}
	if !total.Equal(s.totalQuantity) {
		return fmt.Errorf("total quantity %s != batch sum %s", s.totalQuantity, total)
	}
	if !available.Equal(s.availableQuantity) {
		return fmt.Errorf("available quantity %s != batch sum %s", s.availableQuantity, available)
	}
	if !reserved.Equal(s.reservedQuantity) {
		return fmt.Errorf("reserved quantity %s != batch sum %s", s.reservedQuantity, reserved)
	}
	return nil
}

func (s *Stock) sums() (total, available, reserved decimal.Decimal) {
	total, available, reserved = decimal.Zero, decimal.Zero, decimal.Zero
	for _, b := range s.batches {
		if b.Status != BatchStatusConsumed {
			total = total.Add(b.Quantity)
		}
		if b.Status == BatchStatusAvailable {
			available = available.Add(b.AvailableQuantity)
			reserved = reserved.Add(b.ReservedQuantity)
		}
	}
	return total, available, reserved
}

func (s *Stock) recalculate() {
	s.totalQuantity, s.availableQuantity, s.reservedQuantity = s.sums()
}

func (s *Stock) findBatch(batchNumber string) *Batch {
	for _, b := range s.batches {
		if b.BatchNumber == batchNumber {
			return b
		}
	}
	return nil
}

func (s *Stock) batchOrError(batchNumber string) (*Batch, error) {
	b := s.findBatch(batchNumber)
	if b == nil {
		return nil, shared.NewDomainError(ErrBatchNotFound.Code,
			fmt.Sprintf("batch %s not found in stock %s", batchNumber, s.ID))
	}
	return b, nil
}

func (s *Stock) appendMovement(batchNumber string, typ MovementType, quantity decimal.Decimal, reason, referenceID string, metadata map[string]string, at time.Time) {
	m := s.ledger.append(Movement{
		ID:          uuid.New(),
		StockID:     s.ID,
		BatchNumber: batchNumber,
		Type:        typ,
		Quantity:    quantity,
		Reason:      reason,
		ReferenceID: referenceID,
		Timestamp:   at,
		Metadata:    metadata,
	})
	s.lastMovementAt = &at
	s.recordMovement(m)
}

// finish closes every successful mutation: snapshot event, alerts, version bump.
// withExpirations=false limits the evaluator to the low-stock check.
func (s *Stock) finish(cause string, at time.Time, withExpirations bool) {
	s.Touch(at)
	s.recordStockUpdated(cause, at)
	s.evaluateAlerts(at, withExpirations)
	s.IncrementVersion()
}

func (s *Stock) evaluateAlerts(at time.Time, withExpirations bool) {
	if c, ok := EvaluateLowStock(s.availableQuantity, s.minimumLevel); ok {
		s.recordLowStock(c, at)
	}
	if !withExpirations {
		return
	}
	for _, e := range EvaluateExpirations(s.batches, at, ExpirationWarningWindow) {
		s.recordExpiring(e, at)
	}
}
