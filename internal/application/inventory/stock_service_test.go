package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/inventory/internal/domain/inventory"
	"github.com/erp/inventory/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type serviceHarness struct {
	repo      *MockStockRepository
	locker    *MockLocker
	lock      *MockLock
	publisher *MockEventPublisher
	svc       *StockService
}

func newHarness(t *testing.T, cfg ServiceConfig) *serviceHarness {
	t.Helper()
	h := &serviceHarness{
		repo:      new(MockStockRepository),
		locker:    new(MockLocker),
		lock:      &MockLock{},
		publisher: NewMockEventPublisher(),
	}
	h.svc = NewStockService(h.repo, h.locker, h.publisher, cfg, zap.NewNop())
	return h
}

func (h *serviceHarness) expectLock(stockID uuid.UUID) {
	h.locker.On("Acquire", mock.Anything, StockLockKey(stockID), mock.AnythingOfType("time.Duration")).Return(h.lock, nil)
}

func TestStockService_CreateStock(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	productID, locationID := uuid.New(), uuid.New()
	minimum := dec(10)

	h.repo.On("ExistsByProductAndLocation", mock.Anything, productID, locationID).Return(false, nil)
	h.repo.On("Create", mock.Anything, mock.AnythingOfType("*inventory.Stock")).Return(nil)

	resp, err := h.svc.CreateStock(context.Background(), CreateStockRequest{
		ProductID:    productID,
		ProductCode:  "SKU-100",
		LocationID:   locationID,
		MinimumLevel: &minimum,
	})
	require.NoError(t, err)

	assert.Equal(t, "SKU-100", resp.ProductCode)
	assert.True(t, resp.IsActive)
	assert.True(t, resp.TotalQuantity.IsZero())
	require.NotNil(t, resp.MinimumLevel)
	assert.True(t, resp.MinimumLevel.Equal(minimum))
	assert.Len(t, h.publisher.GetEventsByType(inventory.EventTypeStockCreated), 1)
	// empty stock with a minimum is immediately low
	assert.Len(t, h.publisher.GetEventsByType(inventory.EventTypeLowStockAlert), 1)
	h.repo.AssertExpectations(t)
}

func TestStockService_CreateStock_AlreadyExists(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	productID, locationID := uuid.New(), uuid.New()
	h.repo.On("ExistsByProductAndLocation", mock.Anything, productID, locationID).Return(true, nil)

	_, err := h.svc.CreateStock(context.Background(), CreateStockRequest{
		ProductID: productID, ProductCode: "SKU-1", LocationID: locationID,
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	h.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestStockService_Reserve_FIFOAcrossBatches(t *testing.T) {
	h := newHarness(t, ServiceConfig{SaveRetries: 2})
	f := newStockFixture().withBatch("A1", 100, nil).withBatch("B2", 50, nil)
	h.expectLock(f.id)
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil).Once()
	h.repo.On("SaveWithLock", mock.Anything, mock.AnythingOfType("*inventory.Stock")).Return(nil).Once()

	prefer := false
	resp, err := h.svc.Reserve(context.Background(), f.id, ReserveRequest{
		Quantity: dec(120), OrderID: "SO-1", PreferFEFO: &prefer,
	})
	require.NoError(t, err)

	require.Len(t, resp.Allocations, 2)
	assert.Equal(t, "A1", resp.Allocations[0].BatchNumber)
	assert.True(t, resp.Allocations[0].Quantity.Equal(dec(100)))
	assert.Equal(t, "B2", resp.Allocations[1].BatchNumber)
	assert.True(t, resp.Allocations[1].Quantity.Equal(dec(20)))
	assert.True(t, resp.Stock.AvailableQuantity.Equal(dec(30)))
	assert.True(t, resp.Stock.ReservedQuantity.Equal(dec(120)))

	assert.Len(t, h.publisher.GetEventsByType(inventory.EventTypeMovementRecorded), 2)
	assert.Equal(t, 1, h.lock.Released())
	h.repo.AssertExpectations(t)
}

func TestStockService_Reserve_InsufficientSavesNothing(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	f := newStockFixture().withBatch("A1", 10, nil)
	h.expectLock(f.id)
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil).Once()

	_, err := h.svc.Reserve(context.Background(), f.id, ReserveRequest{Quantity: dec(11), OrderID: "SO-1"})
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	h.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	assert.Empty(t, h.publisher.GetEvents())
	assert.Equal(t, 1, h.lock.Released())
}

func TestStockService_RetriesOnConcurrencyConflict(t *testing.T) {
	h := newHarness(t, ServiceConfig{SaveRetries: 2})
	f := newStockFixture().withBatch("A1", 100, nil)
	h.expectLock(f.id)
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil).Once()
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil).Once()
	h.repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(shared.ErrConcurrencyConflict).Once()
	h.repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := h.svc.Reserve(context.Background(), f.id, ReserveRequest{Quantity: dec(5), OrderID: "SO-1"})
	require.NoError(t, err)

	h.repo.AssertNumberOfCalls(t, "FindByID", 2)
	h.repo.AssertNumberOfCalls(t, "SaveWithLock", 2)
	// only the winning attempt's events are published
	assert.Len(t, h.publisher.GetEventsByType(inventory.EventTypeMovementRecorded), 1)
}

func TestStockService_GivesUpAfterSaveRetries(t *testing.T) {
	h := newHarness(t, ServiceConfig{SaveRetries: 1})
	f := newStockFixture().withBatch("A1", 100, nil)
	h.expectLock(f.id)
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil).Once()
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil).Once()
	h.repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(shared.ErrConcurrencyConflict)

	_, err := h.svc.Reserve(context.Background(), f.id, ReserveRequest{Quantity: dec(5), OrderID: "SO-1"})
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	h.repo.AssertNumberOfCalls(t, "SaveWithLock", 2)
	assert.Empty(t, h.publisher.GetEvents())
	assert.Equal(t, 1, h.lock.Released())
}

func TestStockService_LockUnavailable(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	id := uuid.New()
	h.locker.On("Acquire", mock.Anything, StockLockKey(id), mock.Anything).Return(nil, shared.ErrLockUnavailable)

	_, err := h.svc.Release(context.Background(), id, BatchQuantityRequest{BatchNumber: "A1", Quantity: dec(1), OrderID: "SO-1"})
	assert.ErrorIs(t, err, shared.ErrLockUnavailable)
	h.repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestStockService_ReleaseAndConsume(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	f := newStockFixture().withBatch("A1", 50, nil)
	f.batches[0].AvailableQuantity = dec(20)
	f.batches[0].ReservedQuantity = dec(30)
	h.expectLock(f.id)
	// the same aggregate is handed back, so consumption sees the release
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil).Twice()
	h.repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

	resp, err := h.svc.Release(context.Background(), f.id, BatchQuantityRequest{BatchNumber: "A1", Quantity: dec(10), OrderID: "SO-1"})
	require.NoError(t, err)
	assert.True(t, resp.AvailableQuantity.Equal(dec(30)))
	assert.True(t, resp.ReservedQuantity.Equal(dec(20)))

	resp, err = h.svc.Consume(context.Background(), f.id, BatchQuantityRequest{BatchNumber: "A1", Quantity: dec(20), OrderID: "SO-1"})
	require.NoError(t, err)
	assert.True(t, resp.TotalQuantity.Equal(dec(30)))
	assert.True(t, resp.ReservedQuantity.IsZero())
}

func TestStockService_ConsumeOverReserved(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	f := newStockFixture().withBatch("A1", 50, nil)
	h.expectLock(f.id)
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil)

	_, err := h.svc.Consume(context.Background(), f.id, BatchQuantityRequest{BatchNumber: "A1", Quantity: dec(1), OrderID: "SO-1"})
	assert.ErrorIs(t, err, inventory.ErrOverConsume)
	h.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestStockService_AddBatchDuplicate(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	f := newStockFixture().withBatch("A1", 50, nil)
	h.expectLock(f.id)
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil)

	_, err := h.svc.AddBatch(context.Background(), f.id, AddBatchRequest{BatchNumber: "A1", Quantity: dec(5)})
	assert.ErrorIs(t, err, inventory.ErrDuplicateBatch)
}

func TestStockService_UpdateBatchStatus(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	f := newStockFixture().withBatch("A1", 50, nil)
	h.expectLock(f.id)
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil)
	h.repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

	status := "QUARANTINE"
	resp, err := h.svc.UpdateBatch(context.Background(), f.id, "A1", UpdateBatchRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "QUARANTINE", resp.Batches[0].Status)
	assert.True(t, resp.AvailableQuantity.IsZero(), "quarantined units are not allocatable")
	assert.True(t, resp.TotalQuantity.Equal(dec(50)))
}

func TestStockService_UpdateBatchEmptyRequest(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	_, err := h.svc.UpdateBatch(context.Background(), uuid.New(), "A1", UpdateBatchRequest{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	h.locker.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
}

func TestStockService_ActivateAlreadyActiveSkipsSave(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	f := newStockFixture()
	h.expectLock(f.id)
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil)

	resp, err := h.svc.Activate(context.Background(), f.id)
	require.NoError(t, err)
	assert.True(t, resp.IsActive)
	h.repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestStockService_DeactivateBlocksReservation(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	f := newStockFixture().withBatch("A1", 50, nil)
	f.active = false
	h.expectLock(f.id)
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil)

	_, err := h.svc.Reserve(context.Background(), f.id, ReserveRequest{Quantity: dec(1), OrderID: "SO-1"})
	assert.ErrorIs(t, err, inventory.ErrStockInactive)
}

func TestStockService_SetThresholdsRejectsNegative(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	f := newStockFixture()
	h.expectLock(f.id)
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil)

	negative := dec(-1)
	_, err := h.svc.SetThresholds(context.Background(), f.id, SetThresholdsRequest{MinimumLevel: &negative})
	assert.ErrorIs(t, err, inventory.ErrInvalidThreshold)
}

func TestStockService_GetStockNotFound(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	id := uuid.New()
	h.repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

	_, err := h.svc.GetStock(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestStockService_ListStocksAppliesDefaults(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	f := newStockFixture().withBatch("A1", 5, nil)
	h.repo.On("FindAll", mock.Anything, mock.MatchedBy(func(filter inventory.StockFilter) bool {
		return filter.Page == 1 && filter.PageSize == 20 && filter.OrderBy == "created_at" &&
			filter.LowStock && filter.Filters["product_code"] == "SKU-100"
	})).Return([]*inventory.Stock{f.load()}, int64(1), nil)

	items, total, err := h.svc.ListStocks(context.Background(), StockListFilter{LowStock: true, ProductCode: "SKU-100"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Len(t, items[0].Batches, 1)
}

func TestStockService_ListMovements(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	f := newStockFixture()
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil)
	h.repo.On("FindMovements", mock.Anything, f.id, mock.MatchedBy(func(filter shared.Filter) bool {
		return filter.OrderBy == "sequence" && filter.Filters["movement_type"] == "INBOUND"
	})).Return([]inventory.Movement{{
		ID: uuid.New(), StockID: f.id, Sequence: 1, BatchNumber: "A1",
		Type: inventory.MovementTypeInbound, Quantity: dec(5), Timestamp: time.Now(),
	}}, int64(1), nil)

	items, total, err := h.svc.ListMovements(context.Background(), f.id, MovementListFilter{MovementType: "INBOUND"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "INBOUND", items[0].Type)

	_, _, err = h.svc.ListMovements(context.Background(), f.id, MovementListFilter{MovementType: "TELEPORT"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestStockService_PropagatesRepositoryErrors(t *testing.T) {
	h := newHarness(t, DefaultServiceConfig())
	f := newStockFixture().withBatch("A1", 10, nil)
	h.expectLock(f.id)
	h.repo.On("FindByID", mock.Anything, f.id).Return(f.load(), nil)
	h.repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	_, err := h.svc.Reserve(context.Background(), f.id, ReserveRequest{Quantity: dec(1), OrderID: "SO-1"})
	assert.EqualError(t, err, "connection reset")
	h.repo.AssertNumberOfCalls(t, "SaveWithLock", 1)
}
