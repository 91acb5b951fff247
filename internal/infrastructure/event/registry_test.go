package event

import (
	"testing"

	"github.com/erp/inventory/internal/domain/inventory"
	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_TypedAndWildcard(t *testing.T) {
	registry := NewHandlerRegistry()
	alerts := newTestHandler(inventory.EventTypeLowStockAlert, inventory.EventTypeExpirationAlert)
	all := newTestHandler()

	registry.Register(alerts, alerts.EventTypes()...)
	registry.Register(all)

	handlers := registry.GetHandlers(inventory.EventTypeLowStockAlert)
	if assert.Len(t, handlers, 2) {
		assert.Same(t, alerts, handlers[0], "typed handlers come before wildcard ones")
		assert.Same(t, all, handlers[1])
	}

	handlers = registry.GetHandlers(inventory.EventTypeBatchAdded)
	if assert.Len(t, handlers, 1) {
		assert.Same(t, all, handlers[0])
	}
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	first := newTestHandler(inventory.EventTypeStockUpdated)
	second := newTestHandler(inventory.EventTypeStockUpdated)
	all := newTestHandler()

	registry.Register(first, inventory.EventTypeStockUpdated)
	registry.Register(second, inventory.EventTypeStockUpdated)
	registry.Register(all)

	registry.Unregister(first)
	registry.Unregister(all)

	handlers := registry.GetHandlers(inventory.EventTypeStockUpdated)
	if assert.Len(t, handlers, 1) {
		assert.Same(t, second, handlers[0])
	}

	registry.Unregister(second)
	assert.Empty(t, registry.GetHandlers(inventory.EventTypeStockUpdated))
	assert.Empty(t, registry.handlers, "empty type entries are dropped")
}
