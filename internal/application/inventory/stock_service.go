package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/inventory/internal/domain/inventory"
	"github.com/erp/inventory/internal/domain/shared"
	"github.com/erp/inventory/internal/infrastructure/logger"
	"github.com/erp/inventory/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ServiceConfig tunes the mutation pipeline
type ServiceConfig struct {
	// LockTTL bounds how long a crashed holder can block a stock
	LockTTL time.Duration
	// SaveRetries is how many extra load-mutate-save rounds follow a version conflict
	SaveRetries int
	// DefaultFEFO is used when a reservation does not say which policy to use
	DefaultFEFO bool
}

// DefaultServiceConfig returns the production defaults
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		LockTTL:     10 * time.Second,
		SaveRetries: 3,
		DefaultFEFO: true,
	}
}

// StockService runs the inventory use cases. Every mutation holds the stock's
// lock for the whole load-mutate-save round and publishes the drained domain
// events only after the save succeeded and the lock was released.
type StockService struct {
	repo      inventory.StockRepository
	locker    shared.Locker
	publisher shared.EventPublisher
	config    ServiceConfig
	logger    *zap.Logger
}

// NewStockService creates a new StockService
func NewStockService(
	repo inventory.StockRepository,
	locker shared.Locker,
	publisher shared.EventPublisher,
	config ServiceConfig,
	logger *zap.Logger,
) *StockService {
	if config.SaveRetries < 0 {
		config.SaveRetries = 0
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultServiceConfig().LockTTL
	}
	return &StockService{
		repo:      repo,
		locker:    locker,
		publisher: publisher,
		config:    config,
		logger:    logger.Named("stock_service"),
	}
}

// CreateStock opens an empty stock for a product/location pair
func (s *StockService) CreateStock(ctx context.Context, req CreateStockRequest) (*StockResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "create",
		attribute.String(telemetry.SpanAttrProductID, req.ProductID.String()),
		attribute.String(telemetry.SpanAttrLocationID, req.LocationID.String()),
	)
	defer span.End()

	exists, err := s.repo.ExistsByProductAndLocation(ctx, req.ProductID, req.LocationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.ErrAlreadyExists.Code,
			fmt.Sprintf("stock for product %s at location %s already exists", req.ProductID, req.LocationID))
	}

	stock, err := inventory.NewStock(req.ProductID, req.ProductCode, req.LocationID)
	if err != nil {
		return nil, err
	}
	if req.MinimumLevel != nil || req.MaximumLevel != nil || req.ReorderPoint != nil {
		if err := stock.SetThresholds(inventory.Thresholds{
			MinimumLevel: req.MinimumLevel,
			MaximumLevel: req.MaximumLevel,
			ReorderPoint: req.ReorderPoint,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, stock); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx, stock)

	logger.LOr(ctx, s.logger).Info("stock created",
		zap.String("stock_id", stock.ID.String()),
		zap.String("product_code", stock.ProductCode),
	)
	resp := ToStockResponse(stock)
	return &resp, nil
}

// GetStock retrieves a stock by ID
func (s *StockService) GetStock(ctx context.Context, id uuid.UUID) (*StockResponse, error) {
	stock, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToStockResponse(stock)
	return &resp, nil
}

// GetStockByProductLocation retrieves the stock of a product at a location
func (s *StockService) GetStockByProductLocation(ctx context.Context, productID, locationID uuid.UUID) (*StockResponse, error) {
	stock, err := s.repo.FindByProductAndLocation(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}
	resp := ToStockResponse(stock)
	return &resp, nil
}

// ListStocks retrieves stocks with filtering and pagination
func (s *StockService) ListStocks(ctx context.Context, filter StockListFilter) ([]StockResponse, int64, error) {
	domainFilter := inventory.StockFilter{
		Filter:     pageDefaults(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir, "created_at"),
		ProductID:  filter.ProductID,
		LocationID: filter.LocationID,
		ActiveOnly: filter.ActiveOnly,
		LowStock:   filter.LowStock,
	}
	if filter.ProductCode != "" {
		domainFilter.Filters["product_code"] = filter.ProductCode
	}

	stocks, total, err := s.repo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToStockResponses(stocks), total, nil
}

// ListMovements pages through a stock's ledger, newest first unless asked otherwise
func (s *StockService) ListMovements(ctx context.Context, stockID uuid.UUID, filter MovementListFilter) ([]MovementResponse, int64, error) {
	if filter.MovementType != "" && !inventory.MovementType(filter.MovementType).IsValid() {
		return nil, 0, shared.NewDomainError(shared.ErrInvalidInput.Code,
			fmt.Sprintf("unknown movement type %q", filter.MovementType))
	}
	if _, err := s.repo.FindByID(ctx, stockID); err != nil {
		return nil, 0, err
	}

	domainFilter := pageDefaults(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir, "sequence")
	if filter.BatchNumber != "" {
		domainFilter.Filters["batch_number"] = filter.BatchNumber
	}
	if filter.MovementType != "" {
		domainFilter.Filters["movement_type"] = filter.MovementType
	}

	movements, total, err := s.repo.FindMovements(ctx, stockID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]MovementResponse, len(movements))
	for i, m := range movements {
		out[i] = ToMovementResponse(m)
	}
	return out, total, nil
}

// AddBatch receives a batch into the stock
func (s *StockService) AddBatch(ctx context.Context, stockID uuid.UUID, req AddBatchRequest) (*StockResponse, error) {
	stock, err := s.mutate(ctx, stockID, "add_batch", func(stock *inventory.Stock) error {
		return stock.AddBatch(req.toDomain())
	}, attribute.String(telemetry.SpanAttrBatchNumber, req.BatchNumber))
	if err != nil {
		return nil, err
	}
	resp := ToStockResponse(stock)
	return &resp, nil
}

// UpdateBatch overwrites batch attributes
func (s *StockService) UpdateBatch(ctx context.Context, stockID uuid.UUID, batchNumber string, req UpdateBatchRequest) (*StockResponse, error) {
	changes := req.toDomain()
	if changes.IsEmpty() {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "Update request changes nothing")
	}
	stock, err := s.mutate(ctx, stockID, "update_batch", func(stock *inventory.Stock) error {
		return stock.UpdateBatch(batchNumber, changes)
	}, attribute.String(telemetry.SpanAttrBatchNumber, batchNumber))
	if err != nil {
		return nil, err
	}
	resp := ToStockResponse(stock)
	return &resp, nil
}

// Reserve reserves quantity for an order. The allocations are the receipt
// needed for later release or consumption.
func (s *StockService) Reserve(ctx context.Context, stockID uuid.UUID, req ReserveRequest) (*ReservationResponse, error) {
	preferFEFO := s.config.DefaultFEFO
	if req.PreferFEFO != nil {
		preferFEFO = *req.PreferFEFO
	}

	var allocations []inventory.Allocation
	stock, err := s.mutate(ctx, stockID, "reserve", func(stock *inventory.Stock) error {
		var err error
		allocations, err = stock.ReserveStock(req.Quantity, req.OrderID, preferFEFO)
		return err
	},
		attribute.String(telemetry.SpanAttrOrderID, req.OrderID),
		attribute.String(telemetry.SpanAttrQuantity, req.Quantity.String()),
	)
	if err != nil {
		return nil, err
	}

	logger.LOr(ctx, s.logger).Info("stock reserved",
		zap.String("stock_id", stockID.String()),
		zap.String("order_id", req.OrderID),
		zap.String("quantity", req.Quantity.String()),
		zap.Int("batches", len(allocations)),
	)
	return &ReservationResponse{
		OrderID:     req.OrderID,
		Allocations: allocations,
		Stock:       ToStockResponse(stock),
	}, nil
}

// Release returns reserved units on one batch to available
func (s *StockService) Release(ctx context.Context, stockID uuid.UUID, req BatchQuantityRequest) (*StockResponse, error) {
	stock, err := s.mutate(ctx, stockID, "release", func(stock *inventory.Stock) error {
		return stock.ReleaseReservation(req.BatchNumber, req.Quantity, req.OrderID)
	},
		attribute.String(telemetry.SpanAttrBatchNumber, req.BatchNumber),
		attribute.String(telemetry.SpanAttrOrderID, req.OrderID),
	)
	if err != nil {
		return nil, err
	}
	resp := ToStockResponse(stock)
	return &resp, nil
}

// Consume ships reserved units out of one batch
func (s *StockService) Consume(ctx context.Context, stockID uuid.UUID, req BatchQuantityRequest) (*StockResponse, error) {
	stock, err := s.mutate(ctx, stockID, "consume", func(stock *inventory.Stock) error {
		return stock.ConsumeStock(req.BatchNumber, req.Quantity, req.OrderID)
	},
		attribute.String(telemetry.SpanAttrBatchNumber, req.BatchNumber),
		attribute.String(telemetry.SpanAttrOrderID, req.OrderID),
	)
	if err != nil {
		return nil, err
	}
	resp := ToStockResponse(stock)
	return &resp, nil
}

// SetThresholds replaces the minimum, maximum and reorder levels
func (s *StockService) SetThresholds(ctx context.Context, stockID uuid.UUID, req SetThresholdsRequest) (*StockResponse, error) {
	stock, err := s.mutate(ctx, stockID, "set_thresholds", func(stock *inventory.Stock) error {
		return stock.SetThresholds(req.toDomain())
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockResponse(stock)
	return &resp, nil
}

// Activate puts a stock back into allocation
func (s *StockService) Activate(ctx context.Context, stockID uuid.UUID) (*StockResponse, error) {
	stock, err := s.mutate(ctx, stockID, "activate", func(stock *inventory.Stock) error {
		stock.Activate()
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockResponse(stock)
	return &resp, nil
}

// Deactivate retires a stock from allocation. Existing reservations stay.
func (s *StockService) Deactivate(ctx context.Context, stockID uuid.UUID) (*StockResponse, error) {
	stock, err := s.mutate(ctx, stockID, "deactivate", func(stock *inventory.Stock) error {
		stock.Deactivate()
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockResponse(stock)
	return &resp, nil
}

// mutate runs fn against a freshly loaded stock while holding its lock.
// A version conflict reloads and reapplies fn; a domain error from fn
// aborts immediately and nothing is saved. A stock fn left at its loaded
// version is not written back, though any events it raised are published.
func (s *StockService) mutate(
	ctx context.Context,
	stockID uuid.UUID,
	op string,
	fn func(*inventory.Stock) error,
	attrs ...attribute.KeyValue,
) (*inventory.Stock, error) {
	attrs = append(attrs, attribute.String(telemetry.SpanAttrStockID, stockID.String()))
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", op, attrs...)
	defer span.End()

	lock, err := s.locker.Acquire(ctx, StockLockKey(stockID), s.config.LockTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	stock, err := s.loadMutateSave(ctx, stockID, op, fn)

	if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
		logger.LOr(ctx, s.logger).Warn("failed to release stock lock",
			zap.String("stock_id", stockID.String()),
			zap.Error(releaseErr),
		)
	}

	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.publish(ctx, stock)
	return stock, nil
}

func (s *StockService) loadMutateSave(ctx context.Context, stockID uuid.UUID, op string, fn func(*inventory.Stock) error) (*inventory.Stock, error) {
	for attempt := 0; ; attempt++ {
		stock, err := s.repo.FindByID(ctx, stockID)
		if err != nil {
			return nil, err
		}
		if err := fn(stock); err != nil {
			return nil, err
		}
		if stock.GetVersion() == stock.PersistedVersion() {
			return stock, nil
		}

		err = s.repo.SaveWithLock(ctx, stock)
		if err == nil {
			return stock, nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) || attempt >= s.config.SaveRetries {
			return nil, err
		}
		logger.LOr(ctx, s.logger).Warn("stock modified concurrently, retrying",
			zap.String("stock_id", stockID.String()),
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
		)
	}
}

// publish drains the stock's pending events to the bus. Publish failures are
// logged; the state change is already durable.
func (s *StockService) publish(ctx context.Context, stock *inventory.Stock) {
	events := stock.PullDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.LOr(ctx, s.logger).Error("failed to publish stock events",
			zap.String("stock_id", stock.ID.String()),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}

// StockLockKey is the locker key guarding one stock
func StockLockKey(stockID uuid.UUID) string {
	return "stock:" + stockID.String()
}

func pageDefaults(page, pageSize int, orderBy, orderDir, defaultOrder string) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 {
		f.PageSize = pageSize
	}
	f.OrderBy = defaultOrder
	if orderBy != "" {
		f.OrderBy = orderBy
	}
	if orderDir != "" {
		f.OrderDir = orderDir
	}
	return f
}
