package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/inventory/internal/domain/inventory"
	"github.com/erp/inventory/internal/domain/shared"
	"go.uber.org/zap"
)

// Alert types carried by StockAlert
const (
	AlertTypeLowStock   = "low_stock"
	AlertTypeOutOfStock = "out_of_stock"
	AlertTypeExpiring   = "expiring"
	AlertTypeExpired    = "expired"
)

// StockAlert is the notification payload built from an alert event
type StockAlert struct {
	StockID           string     `json:"stock_id"`
	ProductID         string     `json:"product_id"`
	ProductCode       string     `json:"product_code"`
	LocationID        string     `json:"location_id"`
	AlertType         string     `json:"alert_type"`
	AvailableQuantity string     `json:"available_quantity"`
	MinimumLevel      string     `json:"minimum_level,omitempty"`
	BatchNumber       string     `json:"batch_number,omitempty"`
	ExpirationDate    *time.Time `json:"expiration_date,omitempty"`
	DaysUntilExpiry   int        `json:"days_until_expiry,omitempty"`
	RaisedAt          time.Time  `json:"raised_at"`
}

// AlertNotifier delivers stock alerts to a channel (in-app, email, chat)
type AlertNotifier interface {
	Notify(ctx context.Context, alert StockAlert) error
}

// AlertNotificationHandler turns low-stock and expiration events into
// notifications. The events are level-triggered, so wrap the handler with
// event.NewIdempotentHandler keyed by AlertDedupKey to notify once per day.
type AlertNotificationHandler struct {
	logger   *zap.Logger
	notifier AlertNotifier
}

// NewAlertNotificationHandler creates a new AlertNotificationHandler
func NewAlertNotificationHandler(logger *zap.Logger) *AlertNotificationHandler {
	return &AlertNotificationHandler{logger: logger.Named("stock_alerts")}
}

// WithNotifier sets the notifier for sending alerts
func (h *AlertNotificationHandler) WithNotifier(notifier AlertNotifier) *AlertNotificationHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the alert event types
func (h *AlertNotificationHandler) EventTypes() []string {
	return inventory.AlertEventTypes()
}

// Handle processes a LowStockAlertEvent or ExpirationAlertEvent
func (h *AlertNotificationHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	alert, ok := ToStockAlert(evt)
	if !ok {
		h.logger.Error("unexpected event type", zap.String("actual", evt.EventType()))
		return fmt.Errorf("unexpected event type: %s", evt.EventType())
	}

	fields := []zap.Field{
		zap.String("alert_type", alert.AlertType),
		zap.String("stock_id", alert.StockID),
		zap.String("product_code", alert.ProductCode),
		zap.String("available_quantity", alert.AvailableQuantity),
	}
	if alert.BatchNumber != "" {
		fields = append(fields,
			zap.String("batch_number", alert.BatchNumber),
			zap.Int("days_until_expiry", alert.DaysUntilExpiry),
		)
	} else {
		fields = append(fields, zap.String("minimum_level", alert.MinimumLevel))
	}
	h.logger.Warn("stock alert raised", fields...)

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.Notify(ctx, alert); err != nil {
		h.logger.Error("failed to send stock alert",
			zap.String("alert_type", alert.AlertType),
			zap.String("stock_id", alert.StockID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send stock alert: %w", err)
	}
	return nil
}

// ToStockAlert converts an alert event. ok is false for any other event.
func ToStockAlert(evt shared.DomainEvent) (StockAlert, bool) {
	switch e := evt.(type) {
	case *inventory.LowStockAlertEvent:
		alertType := AlertTypeLowStock
		if e.AvailableQuantity.IsZero() {
			alertType = AlertTypeOutOfStock
		}
		return StockAlert{
			StockID:           e.StockID.String(),
			ProductID:         e.ProductID.String(),
			ProductCode:       e.ProductCode,
			LocationID:        e.LocationID.String(),
			AlertType:         alertType,
			AvailableQuantity: e.AvailableQuantity.String(),
			MinimumLevel:      e.MinimumLevel.String(),
			RaisedAt:          e.OccurredAt(),
		}, true
	case *inventory.ExpirationAlertEvent:
		alertType := AlertTypeExpiring
		if e.DaysUntilExpiry < 0 {
			alertType = AlertTypeExpired
		}
		expires := e.ExpirationDate
		return StockAlert{
			StockID:           e.StockID.String(),
			ProductID:         e.ProductID.String(),
			ProductCode:       e.ProductCode,
			LocationID:        e.LocationID.String(),
			AlertType:         alertType,
			AvailableQuantity: e.AvailableQuantity.String(),
			BatchNumber:       e.BatchNumber,
			ExpirationDate:    &expires,
			DaysUntilExpiry:   e.DaysUntilExpiry,
			RaisedAt:          e.OccurredAt(),
		}, true
	}
	return StockAlert{}, false
}

// AlertDedupKey collapses repeated alerts for the same condition within one
// UTC day: low stock per (stock, minimum level), expiration per (stock, batch).
// Other events fall back to their event id.
func AlertDedupKey(evt shared.DomainEvent) string {
	day := evt.OccurredAt().UTC().Format("2006-01-02")
	switch e := evt.(type) {
	case *inventory.LowStockAlertEvent:
		return fmt.Sprintf("alert:%s:low:%s:%s", e.StockID, e.MinimumLevel.String(), day)
	case *inventory.ExpirationAlertEvent:
		return fmt.Sprintf("alert:%s:exp:%s:%s", e.StockID, e.BatchNumber, day)
	}
	return evt.EventID().String()
}
