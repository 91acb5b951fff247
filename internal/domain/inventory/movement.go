package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType classifies a movement record
type MovementType string

const (
	MovementTypeInbound     MovementType = "INBOUND"
	MovementTypeOutbound    MovementType = "OUTBOUND"
	MovementTypeTransfer    MovementType = "TRANSFER"
	MovementTypeAdjustment  MovementType = "ADJUSTMENT"
	MovementTypeReservation MovementType = "RESERVATION"
	MovementTypeRelease     MovementType = "RELEASE"
)

// IsValid checks if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeInbound, MovementTypeOutbound, MovementTypeTransfer,
		MovementTypeAdjustment, MovementTypeReservation, MovementTypeRelease:
		return true
	}
	return false
}

// String returns the string representation
func (t MovementType) String() string {
	return string(t)
}

// Movement is an immutable ledger entry describing one quantity change.
// Sequence is the 1-based position in the owning stock's ledger.
type Movement struct {
	ID          uuid.UUID
	StockID     uuid.UUID
	Sequence    int64
	BatchNumber string
	Type        MovementType
	Quantity    decimal.Decimal
	Reason      string
	ReferenceID string
	Timestamp   time.Time
	Metadata    map[string]string
}

// HasReference reports whether the movement points at an order or transfer
func (m Movement) HasReference() bool {
	return m.ReferenceID != ""
}

// MovementLedger is the append-only movement history of a stock.
// Entries are only ever appended; the persisted prefix is tracked so the
// repository can insert just the new tail.
type MovementLedger struct {
	entries   []Movement
	persisted int
}

// RestoreMovementLedger rebuilds a ledger from stored entries, all treated as persisted
func RestoreMovementLedger(entries []Movement) MovementLedger {
	c := make([]Movement, len(entries))
	copy(c, entries)
	return MovementLedger{entries: c, persisted: len(c)}
}

func (l *MovementLedger) append(m Movement) Movement {
	m.Sequence = int64(len(l.entries) + 1)
	m.Metadata = copyMetadata(m.Metadata)
	l.entries = append(l.entries, m)
	return m
}

// Len returns the number of entries
func (l *MovementLedger) Len() int {
	return len(l.entries)
}

// Entries returns a copy of all entries in append order
func (l *MovementLedger) Entries() []Movement {
	c := make([]Movement, len(l.entries))
	copy(c, l.entries)
	return c
}

// Pending returns entries appended since the last MarkPersisted
func (l *MovementLedger) Pending() []Movement {
	c := make([]Movement, len(l.entries)-l.persisted)
	copy(c, l.entries[l.persisted:])
	return c
}

// MarkPersisted records that every current entry has been stored
func (l *MovementLedger) MarkPersisted() {
	l.persisted = len(l.entries)
}

// Last returns the most recent entry
func (l *MovementLedger) Last() (Movement, bool) {
	if len(l.entries) == 0 {
		return Movement{}, false
	}
	return l.entries[len(l.entries)-1], true
}
