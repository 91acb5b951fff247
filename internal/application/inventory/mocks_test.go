package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/erp/inventory/internal/domain/inventory"
	"github.com/erp/inventory/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEvents() []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]shared.DomainEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	var out []shared.DomainEvent
	for _, e := range m.GetEvents() {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// MockStockRepository is a mock implementation of inventory.StockRepository
type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Stock, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Stock), args.Error(1)
}

func (m *MockStockRepository) FindByProductAndLocation(ctx context.Context, productID, locationID uuid.UUID) (*inventory.Stock, error) {
	args := m.Called(ctx, productID, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Stock), args.Error(1)
}

func (m *MockStockRepository) ExistsByProductAndLocation(ctx context.Context, productID, locationID uuid.UUID) (bool, error) {
	args := m.Called(ctx, productID, locationID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStockRepository) FindAll(ctx context.Context, filter inventory.StockFilter) ([]*inventory.Stock, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*inventory.Stock), args.Get(1).(int64), args.Error(2)
}

func (m *MockStockRepository) FindIDsWithAvailableBatchesExpiringBefore(ctx context.Context, t time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockStockRepository) FindMovements(ctx context.Context, stockID uuid.UUID, filter shared.Filter) ([]inventory.Movement, int64, error) {
	args := m.Called(ctx, stockID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]inventory.Movement), args.Get(1).(int64), args.Error(2)
}

func (m *MockStockRepository) Create(ctx context.Context, stock *inventory.Stock) error {
	args := m.Called(ctx, stock)
	return args.Error(0)
}

func (m *MockStockRepository) SaveWithLock(ctx context.Context, stock *inventory.Stock) error {
	args := m.Called(ctx, stock)
	return args.Error(0)
}

// MockLocker is a mock implementation of shared.Locker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(shared.Lock), args.Error(1)
}

// MockLock counts releases
type MockLock struct {
	mu       sync.Mutex
	released int
}

func (l *MockLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	return nil
}

func (l *MockLock) Released() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}

// MockAlertNotifier records notifications
type MockAlertNotifier struct {
	mock.Mock
}

func (m *MockAlertNotifier) Notify(ctx context.Context, alert StockAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

type stockFixture struct {
	id         uuid.UUID
	productID  uuid.UUID
	locationID uuid.UUID
	version    int
	minimum    *decimal.Decimal
	batches    []inventory.Batch
	active     bool
}

func newStockFixture() *stockFixture {
	return &stockFixture{
		id:         uuid.New(),
		productID:  uuid.New(),
		locationID: uuid.New(),
		version:    3,
		active:     true,
	}
}

func (f *stockFixture) withBatch(number string, qty int64, expires *time.Time) *stockFixture {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(len(f.batches)) * time.Hour)
	q := decimal.NewFromInt(qty)
	f.batches = append(f.batches, inventory.Batch{
		BatchNumber:       number,
		Quantity:          q,
		AvailableQuantity: q,
		ReservedQuantity:  decimal.Zero,
		Status:            inventory.BatchStatusAvailable,
		ExpirationDate:    expires,
		CreatedAt:         created,
		UpdatedAt:         created,
	})
	return f
}

func (f *stockFixture) withMinimum(level int64) *stockFixture {
	d := decimal.NewFromInt(level)
	f.minimum = &d
	return f
}

// load returns a fresh aggregate each call, as a repository would
func (f *stockFixture) load() *inventory.Stock {
	batches := make([]*inventory.Batch, len(f.batches))
	for i := range f.batches {
		b := f.batches[i]
		batches[i] = b.Clone()
	}
	return inventory.RestoreStock(inventory.StockState{
		ID:          f.id,
		ProductID:   f.productID,
		ProductCode: "SKU-100",
		LocationID:  f.locationID,
		Batches:     batches,
		Thresholds:  inventory.Thresholds{MinimumLevel: f.minimum},
		IsActive:    f.active,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Version:     f.version,
	})
}

func timePtr(t time.Time) *time.Time { return &t }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
