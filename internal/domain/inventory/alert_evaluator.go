package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpirationWarningWindow is how far ahead expiration alerts look
const ExpirationWarningWindow = 30 * 24 * time.Hour

// LowStockCondition is a triggered low-stock check
type LowStockCondition struct {
	AvailableQuantity decimal.Decimal
	MinimumLevel      decimal.Decimal
}

// ExpiringBatch is a triggered expiration check for one batch
type ExpiringBatch struct {
	BatchNumber       string
	ExpirationDate    time.Time
	DaysUntilExpiry   int
	AvailableQuantity decimal.Decimal
}

// EvaluateLowStock is level-triggered: it fires on every call where a
// minimum is configured and available <= minimum.
func EvaluateLowStock(available decimal.Decimal, minimumLevel *decimal.Decimal) (LowStockCondition, bool) {
	if minimumLevel == nil {
		return LowStockCondition{}, false
	}
	if available.GreaterThan(*minimumLevel) {
		return LowStockCondition{}, false
	}
	return LowStockCondition{
		AvailableQuantity: available,
		MinimumLevel:      *minimumLevel,
	}, true
}

// EvaluateExpirations returns every AVAILABLE batch whose expiration falls
// on or before now+window, in batch order. Batches already past their date
// but not yet moved out of AVAILABLE are included with a negative day count.
func EvaluateExpirations(batches []*Batch, now time.Time, window time.Duration) []ExpiringBatch {
	var out []ExpiringBatch
	for _, b := range batches {
		if b.Status != BatchStatusAvailable || !b.ExpiresWithin(now, window) {
			continue
		}
		out = append(out, ExpiringBatch{
			BatchNumber:       b.BatchNumber,
			ExpirationDate:    *b.ExpirationDate,
			DaysUntilExpiry:   b.DaysUntilExpiry(now),
			AvailableQuantity: b.AvailableQuantity,
		})
	}
	return out
}
