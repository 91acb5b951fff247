package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/inventory/internal/domain/inventory"
	"github.com/erp/inventory/internal/domain/shared"
	"github.com/erp/inventory/internal/infrastructure/cache"
	"github.com/erp/inventory/internal/infrastructure/event"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func lowStockEvent(stockID uuid.UUID, available, minimum int64, at time.Time) *inventory.LowStockAlertEvent {
	return &inventory.LowStockAlertEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(inventory.EventTypeLowStockAlert, inventory.AggregateTypeStock, stockID, at),
		StockRef:          inventory.StockRef{StockID: stockID, ProductCode: "SKU-100"},
		AvailableQuantity: dec(available),
		MinimumLevel:      dec(minimum),
	}
}

func expirationEvent(stockID uuid.UUID, batch string, days int, at time.Time) *inventory.ExpirationAlertEvent {
	return &inventory.ExpirationAlertEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(inventory.EventTypeExpirationAlert, inventory.AggregateTypeStock, stockID, at),
		StockRef:          inventory.StockRef{StockID: stockID, ProductCode: "SKU-100"},
		BatchNumber:       batch,
		ExpirationDate:    at.Add(time.Duration(days) * 24 * time.Hour),
		DaysUntilExpiry:   days,
		AvailableQuantity: dec(4),
	}
}

func TestToStockAlert(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()

	alert, ok := ToStockAlert(lowStockEvent(id, 3, 10, at))
	require.True(t, ok)
	assert.Equal(t, AlertTypeLowStock, alert.AlertType)
	assert.Equal(t, "10", alert.MinimumLevel)

	alert, _ = ToStockAlert(lowStockEvent(id, 0, 10, at))
	assert.Equal(t, AlertTypeOutOfStock, alert.AlertType)

	alert, _ = ToStockAlert(expirationEvent(id, "B1", 5, at))
	assert.Equal(t, AlertTypeExpiring, alert.AlertType)
	assert.Equal(t, "B1", alert.BatchNumber)

	alert, _ = ToStockAlert(expirationEvent(id, "B1", -2, at))
	assert.Equal(t, AlertTypeExpired, alert.AlertType)

	_, ok = ToStockAlert(&inventory.StockCreatedEvent{})
	assert.False(t, ok)
}

func TestAlertNotificationHandler_Notifies(t *testing.T) {
	notifier := new(MockAlertNotifier)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(a StockAlert) bool {
		return a.AlertType == AlertTypeLowStock
	})).Return(nil).Once()

	h := NewAlertNotificationHandler(zap.NewNop()).WithNotifier(notifier)
	assert.ElementsMatch(t, inventory.AlertEventTypes(), h.EventTypes())
	require.NoError(t, h.Handle(context.Background(), lowStockEvent(uuid.New(), 1, 5, time.Now())))
	notifier.AssertExpectations(t)
}

func TestAlertNotificationHandler_NotifierError(t *testing.T) {
	notifier := new(MockAlertNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	h := NewAlertNotificationHandler(zap.NewNop()).WithNotifier(notifier)
	err := h.Handle(context.Background(), expirationEvent(uuid.New(), "B1", 3, time.Now()))
	assert.ErrorContains(t, err, "smtp down")
}

func TestAlertNotificationHandler_RejectsOtherEvents(t *testing.T) {
	h := NewAlertNotificationHandler(zap.NewNop())
	assert.Error(t, h.Handle(context.Background(), &inventory.StockCreatedEvent{}))
}

func TestAlertDedupKey(t *testing.T) {
	id := uuid.New()
	morning := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	nextDay := morning.Add(24 * time.Hour)

	assert.Equal(t, AlertDedupKey(lowStockEvent(id, 3, 10, morning)), AlertDedupKey(lowStockEvent(id, 2, 10, evening)))
	assert.NotEqual(t, AlertDedupKey(lowStockEvent(id, 3, 10, morning)), AlertDedupKey(lowStockEvent(id, 3, 10, nextDay)))
	assert.NotEqual(t, AlertDedupKey(lowStockEvent(id, 3, 10, morning)), AlertDedupKey(lowStockEvent(id, 3, 20, morning)))
	assert.NotEqual(t, AlertDedupKey(expirationEvent(id, "A", 3, morning)), AlertDedupKey(expirationEvent(id, "B", 3, morning)))
}

func TestAlertNotificationHandler_DedupedThroughIdempotentHandler(t *testing.T) {
	notifier := new(MockAlertNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	store := cache.NewInMemoryIdempotencyStore(time.Minute)
	defer store.Close()

	handler := event.NewIdempotentHandler(
		NewAlertNotificationHandler(zap.NewNop()).WithNotifier(notifier),
		store,
		zap.NewNop(),
		event.WithKeyFunc(AlertDedupKey),
		event.WithTTL(24*time.Hour),
	)

	id := uuid.New()
	at := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, handler.Handle(context.Background(), lowStockEvent(id, int64(5-i), 10, at)))
	}
	require.NoError(t, handler.Handle(context.Background(), expirationEvent(id, "B1", 3, at)))

	notifier.AssertNumberOfCalls(t, "Notify", 2)
	assert.Equal(t, int64(2), handler.Stats().Duplicate)
}
