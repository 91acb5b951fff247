package inventory

import (
	"fmt"
	"math"
	"time"

	"github.com/erp/inventory/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// QuantityScale is the number of decimal places a quantity may carry.
// It matches the decimal(18,4) storage columns.
const QuantityScale = 4

// exceedsScale reports whether d has digits beyond QuantityScale
func exceedsScale(d decimal.Decimal) bool {
	return !d.Equal(d.Truncate(QuantityScale))
}

func checkQuantityScale(what string, q decimal.Decimal) error {
	if exceedsScale(q) {
		return shared.NewDomainError(ErrInvalidQuantity.Code,
			fmt.Sprintf("%s %s has more than %d decimal places", what, q, QuantityScale))
	}
	return nil
}

// BatchStatus is the lifecycle state of a batch
type BatchStatus string

const (
	BatchStatusAvailable  BatchStatus = "AVAILABLE"
	BatchStatusReserved   BatchStatus = "RESERVED"
	BatchStatusExpired    BatchStatus = "EXPIRED"
	BatchStatusDamaged    BatchStatus = "DAMAGED"
	BatchStatusQuarantine BatchStatus = "QUARANTINE"
	BatchStatusConsumed   BatchStatus = "CONSUMED"
)

// IsValid checks if the status is one of the known values
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusAvailable, BatchStatusReserved, BatchStatusExpired,
		BatchStatusDamaged, BatchStatusQuarantine, BatchStatusConsumed:
		return true
	}
	return false
}

// String returns the string representation
func (s BatchStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusConsumed
}

// CanTransitionTo reports whether a manual status overwrite from s to next is allowed.
// Nothing leaves CONSUMED; every other status may be overwritten.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	return !s.IsTerminal()
}

// AllBatchStatuses returns all valid batch statuses
func AllBatchStatuses() []BatchStatus {
	return []BatchStatus{
		BatchStatusAvailable,
		BatchStatusReserved,
		BatchStatusExpired,
		BatchStatusDamaged,
		BatchStatusQuarantine,
		BatchStatusConsumed,
	}
}

// Batch is a physically distinct lot of a product inside a Stock.
// Quantity is always AvailableQuantity + ReservedQuantity.
type Batch struct {
	BatchNumber       string
	Quantity          decimal.Decimal
	AvailableQuantity decimal.Decimal
	ReservedQuantity  decimal.Decimal
	Status            BatchStatus
	ProductionDate    *time.Time
	ExpirationDate    *time.Time
	Supplier          string
	Cost              decimal.NullDecimal
	Location          string
	Metadata          map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewBatch carries the caller-supplied attributes of a batch being received
type NewBatch struct {
	BatchNumber    string
	Quantity       decimal.Decimal
	ProductionDate *time.Time
	ExpirationDate *time.Time
	Supplier       string
	Cost           decimal.NullDecimal
	Location       string
	Metadata       map[string]string
}

// BatchChanges describes an updateBatch request. Nil fields are left untouched.
type BatchChanges struct {
	Quantity       *decimal.Decimal
	ExpirationDate *time.Time
	Supplier       *string
	Cost           *decimal.Decimal
	Location       *string
	Status         *BatchStatus
	Metadata       map[string]string
	Reason         string
}

// IsEmpty reports whether the request changes nothing
func (c BatchChanges) IsEmpty() bool {
	return c.Quantity == nil && c.ExpirationDate == nil && c.Supplier == nil &&
		c.Cost == nil && c.Location == nil && c.Status == nil && c.Metadata == nil
}

func newBatch(data NewBatch, at time.Time) *Batch {
	return &Batch{
		BatchNumber:       data.BatchNumber,
		Quantity:          data.Quantity,
		AvailableQuantity: data.Quantity,
		ReservedQuantity:  decimal.Zero,
		Status:            BatchStatusAvailable,
		ProductionDate:    copyTime(data.ProductionDate),
		ExpirationDate:    copyTime(data.ExpirationDate),
		Supplier:          data.Supplier,
		Cost:              data.Cost,
		Location:          data.Location,
		Metadata:          copyMetadata(data.Metadata),
		CreatedAt:         at,
		UpdatedAt:         at,
	}
}

// IsAllocatable reports whether the batch can supply a reservation
func (b *Batch) IsAllocatable() bool {
	return b.Status == BatchStatusAvailable && b.AvailableQuantity.GreaterThan(decimal.Zero)
}

// HasExpiration reports whether the batch carries an expiration date
func (b *Batch) HasExpiration() bool {
	return b.ExpirationDate != nil
}

// IsExpiredAt reports whether the expiration date is at or before t
func (b *Batch) IsExpiredAt(t time.Time) bool {
	return b.ExpirationDate != nil && !b.ExpirationDate.After(t)
}

// ExpiresWithin reports whether the batch expires no later than t+window.
// Already expired batches are included.
func (b *Batch) ExpiresWithin(t time.Time, window time.Duration) bool {
	return b.ExpirationDate != nil && !b.ExpirationDate.After(t.Add(window))
}

// DaysUntilExpiry returns the whole days from t until expiration, negative once past.
// Returns math.MaxInt when the batch has no expiration date.
func (b *Batch) DaysUntilExpiry(t time.Time) int {
	if b.ExpirationDate == nil {
		return math.MaxInt
	}
	return int(math.Floor(b.ExpirationDate.Sub(t).Hours() / 24))
}

// CheckInvariants verifies the quantity partition and sign constraints
func (b *Batch) CheckInvariants() error {
	if b.Quantity.IsNegative() || b.AvailableQuantity.IsNegative() || b.ReservedQuantity.IsNegative() {
		return fmt.Errorf("batch %s has a negative quantity", b.BatchNumber)
	}
	if !b.AvailableQuantity.Add(b.ReservedQuantity).Equal(b.Quantity) {
		return fmt.Errorf("batch %s: available %s + reserved %s != quantity %s",
			b.BatchNumber, b.AvailableQuantity, b.ReservedQuantity, b.Quantity)
	}
	if b.Status == BatchStatusConsumed && !b.Quantity.IsZero() {
		return fmt.Errorf("batch %s is consumed but holds %s", b.BatchNumber, b.Quantity)
	}
	return nil
}

// Clone returns a deep copy
func (b *Batch) Clone() *Batch {
	c := *b
	c.ProductionDate = copyTime(b.ProductionDate)
	c.ExpirationDate = copyTime(b.ExpirationDate)
	c.Metadata = copyMetadata(b.Metadata)
	return &c
}

func (b *Batch) reserve(quantity decimal.Decimal, at time.Time) {
	b.AvailableQuantity = b.AvailableQuantity.Sub(quantity)
	b.ReservedQuantity = b.ReservedQuantity.Add(quantity)
	b.UpdatedAt = at
}

func (b *Batch) release(quantity decimal.Decimal, at time.Time) {
	b.ReservedQuantity = b.ReservedQuantity.Sub(quantity)
	b.AvailableQuantity = b.AvailableQuantity.Add(quantity)
	b.UpdatedAt = at
}

func (b *Batch) consume(quantity decimal.Decimal, at time.Time) {
	b.ReservedQuantity = b.ReservedQuantity.Sub(quantity)
	b.Quantity = b.Quantity.Sub(quantity)
	if b.Quantity.LessThanOrEqual(decimal.Zero) {
		b.Quantity = decimal.Zero
		b.Status = BatchStatusConsumed
	}
	b.UpdatedAt = at
}

// validateChanges checks a BatchChanges request against the current batch
// without mutating anything.
func (b *Batch) validateChanges(changes BatchChanges) error {
	if changes.Quantity != nil {
		if b.Status.IsTerminal() {
			return shared.NewDomainError(ErrInvalidStatusTransition.Code,
				fmt.Sprintf("batch %s is consumed and its quantity cannot change", b.BatchNumber))
		}
		if changes.Quantity.IsNegative() {
			return shared.NewDomainError(ErrInvalidQuantity.Code, "batch quantity cannot be negative")
		}
		if err := checkQuantityScale("batch quantity", *changes.Quantity); err != nil {
			return err
		}
		if changes.Quantity.LessThan(b.ReservedQuantity) {
			return shared.NewDomainError(ErrInvalidQuantity.Code,
				fmt.Sprintf("batch %s quantity %s would drop below reserved %s",
					b.BatchNumber, changes.Quantity, b.ReservedQuantity))
		}
	}
	if changes.Cost != nil {
		if changes.Cost.IsNegative() {
			return shared.NewDomainError(ErrInvalidQuantity.Code, "batch cost cannot be negative")
		}
		if err := checkQuantityScale("batch cost", *changes.Cost); err != nil {
			return err
		}
	}
	if changes.Status != nil {
		next := *changes.Status
		if !next.IsValid() {
			return shared.NewDomainError(ErrInvalidStatusTransition.Code,
				fmt.Sprintf("unknown batch status %q", next))
		}
		if !b.Status.CanTransitionTo(next) {
			return shared.NewDomainError(ErrInvalidStatusTransition.Code,
				fmt.Sprintf("batch %s cannot move from %s to %s", b.BatchNumber, b.Status, next))
		}
		if next == BatchStatusConsumed && b.Status != BatchStatusConsumed {
			quantity := b.Quantity
			if changes.Quantity != nil {
				quantity = *changes.Quantity
			}
			if !quantity.IsZero() {
				return shared.NewDomainError(ErrInvalidStatusTransition.Code,
					fmt.Sprintf("batch %s still holds %s and cannot be marked consumed", b.BatchNumber, quantity))
			}
		}
	}
	return nil
}

// applyChanges overwrites the requested fields and returns the signed
// quantity delta. validateChanges must have passed.
func (b *Batch) applyChanges(changes BatchChanges, at time.Time) decimal.Decimal {
	delta := decimal.Zero
	if changes.Quantity != nil {
		delta = changes.Quantity.Sub(b.Quantity)
		b.Quantity = *changes.Quantity
		b.AvailableQuantity = decimal.Max(b.AvailableQuantity.Add(delta), decimal.Zero)
	}
	if changes.ExpirationDate != nil {
		b.ExpirationDate = copyTime(changes.ExpirationDate)
	}
	if changes.Supplier != nil {
		b.Supplier = *changes.Supplier
	}
	if changes.Cost != nil {
		b.Cost = decimal.NewNullDecimal(*changes.Cost)
	}
	if changes.Location != nil {
		b.Location = *changes.Location
	}
	if changes.Status != nil {
		b.Status = *changes.Status
	}
	if changes.Metadata != nil {
		b.Metadata = copyMetadata(changes.Metadata)
	}
	b.UpdatedAt = at
	return delta
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
