package telemetry

import (
	"context"
	"time"

	"github.com/erp/inventory/internal/domain/inventory"
	"github.com/erp/inventory/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InventoryMetrics turns stock domain events into OTEL instruments. It is
// subscribed to the event bus like any other handler.
type InventoryMetrics struct {
	movements       *Counter
	movementQty     *Histogram
	alerts          *Counter
	batchesReceived *Counter
	sweeps          *Counter
	sweepExpired    *Counter
	sweepDuration   *Histogram
}

// NewInventoryMetrics registers the inventory instruments on meter
func NewInventoryMetrics(meter metric.Meter) (*InventoryMetrics, error) {
	var (
		m   InventoryMetrics
		err error
	)
	if m.movements, err = NewCounter(meter, "inventory_movements_total",
		"Ledger entries recorded, by movement type", "{movement}"); err != nil {
		return nil, err
	}
	if m.movementQty, err = NewHistogram(meter, HistogramOpts{
		Name:        "inventory_movement_quantity",
		Description: "Quantity moved per ledger entry",
		Unit:        "{unit}",
		Boundaries:  QuantityBuckets,
	}); err != nil {
		return nil, err
	}
	if m.alerts, err = NewCounter(meter, "inventory_alerts_total",
		"Low stock and expiration alerts raised", "{alert}"); err != nil {
		return nil, err
	}
	if m.batchesReceived, err = NewCounter(meter, "inventory_batches_received_total",
		"Batches added to stocks", "{batch}"); err != nil {
		return nil, err
	}
	if m.sweeps, err = NewCounter(meter, "inventory_expiration_sweeps_total",
		"Expiration sweep runs", "{run}"); err != nil {
		return nil, err
	}
	if m.sweepExpired, err = NewCounter(meter, "inventory_batches_expired_total",
		"Batches marked EXPIRED by the sweep", "{batch}"); err != nil {
		return nil, err
	}
	if m.sweepDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "inventory_expiration_sweep_duration",
		Description: "Wall time of one expiration sweep",
		Unit:        "s",
		Boundaries:  SweepDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return &m, nil
}

// EventTypes implements shared.EventHandler
func (m *InventoryMetrics) EventTypes() []string {
	return []string{
		inventory.EventTypeMovementRecorded,
		inventory.EventTypeBatchAdded,
		inventory.EventTypeLowStockAlert,
		inventory.EventTypeExpirationAlert,
	}
}

// Handle implements shared.EventHandler
func (m *InventoryMetrics) Handle(ctx context.Context, evt shared.DomainEvent) error {
	switch e := evt.(type) {
	case *inventory.MovementRecordedEvent:
		attrs := []attribute.KeyValue{
			AttrMovementType.String(e.Type.String()),
			AttrLocationID.String(e.LocationID.String()),
		}
		m.movements.Inc(ctx, attrs...)
		m.movementQty.Record(ctx, e.Quantity.InexactFloat64(), attrs...)
	case *inventory.BatchAddedEvent:
		m.batchesReceived.Inc(ctx, AttrLocationID.String(e.LocationID.String()))
	case *inventory.LowStockAlertEvent:
		m.alerts.Inc(ctx, AttrAlertType.String(e.EventType()), AttrProductCode.String(e.ProductCode))
	case *inventory.ExpirationAlertEvent:
		m.alerts.Inc(ctx, AttrAlertType.String(e.EventType()), AttrProductCode.String(e.ProductCode))
	}
	return nil
}

// RecordSweep records one expiration sweep run
func (m *InventoryMetrics) RecordSweep(ctx context.Context, elapsed time.Duration, expired int, failed bool) {
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	m.sweeps.Inc(ctx, AttrCause.String(outcome))
	m.sweepExpired.Add(ctx, int64(expired))
	m.sweepDuration.RecordDuration(ctx, elapsed)
}
