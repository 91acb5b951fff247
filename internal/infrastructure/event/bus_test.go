package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/inventory/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Stock", uuid.New(), time.Now()),
		Data:            "payload",
	}
}

type testHandler struct {
	eventTypes []string
	mu         sync.Mutex
	handled    []shared.DomainEvent
	err        error
	panicMsg   string
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string { return h.eventTypes }

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	lowStock := newTestHandler("LowStockAlert")
	everything := newTestHandler()
	bus.Subscribe(lowStock)
	bus.Subscribe(everything)

	err := bus.Publish(context.Background(),
		newTestEvent("LowStockAlert"),
		newTestEvent("StockUpdated"),
	)

	assert.NoError(t, err)
	assert.Equal(t, 1, lowStock.count())
	assert.Equal(t, 2, everything.count())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandlerTypes(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newTestHandler("LowStockAlert")
	bus.Subscribe(h, "StockUpdated")

	_ = bus.Publish(context.Background(), newTestEvent("LowStockAlert"), newTestEvent("StockUpdated"))
	assert.Equal(t, 1, h.count())
	assert.Equal(t, "StockUpdated", h.handled[0].EventType())
}

func TestInMemoryEventBus_FailingHandlersDoNotStopDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := newTestHandler("E")
	failing.err = errors.New("boom")
	panicking := newTestHandler("E")
	panicking.panicMsg = "kaboom"
	healthy := newTestHandler("E")
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent("E"))

	assert.NoError(t, err)
	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, int64(2), bus.Failures())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newTestHandler("E")
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	_ = bus.Publish(context.Background(), newTestEvent("E"))
	assert.Equal(t, 0, h.count())
	assert.Empty(t, bus.registry.GetHandlers("E"))
}

func TestInMemoryEventBus_PreservesOrder(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newTestHandler()
	bus.Subscribe(h)

	events := []shared.DomainEvent{newTestEvent("A"), newTestEvent("B"), newTestEvent("C")}
	_ = bus.Publish(context.Background(), events...)

	for i, e := range events {
		assert.Equal(t, e.EventID(), h.handled[i].EventID())
	}
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	assert.NoError(t, bus.Start(context.Background()))
	assert.True(t, bus.running.Load())
	assert.NoError(t, bus.Stop(context.Background()))
	assert.False(t, bus.running.Load())
}
