package inventory

import (
	"context"
	"time"

	"github.com/erp/inventory/internal/domain/shared"
	"github.com/google/uuid"
)

// StockFilter narrows stock listings
type StockFilter struct {
	shared.Filter
	ProductID  *uuid.UUID
	LocationID *uuid.UUID
	ActiveOnly bool
	LowStock   bool
}

// StockRepository is the persistence port for the Stock aggregate.
// Implementations load and store the whole aggregate: batches, thresholds
// and the movement ledger.
type StockRepository interface {
	// FindByID loads a stock with all batches and movements.
	// Returns shared.ErrNotFound when no stock has the id.
	FindByID(ctx context.Context, id uuid.UUID) (*Stock, error)

	// FindByProductAndLocation loads the stock for a product/location pair
	FindByProductAndLocation(ctx context.Context, productID, locationID uuid.UUID) (*Stock, error)

	// ExistsByProductAndLocation reports whether a stock already exists for the pair
	ExistsByProductAndLocation(ctx context.Context, productID, locationID uuid.UUID) (bool, error)

	// FindAll lists stocks without their ledger, newest first by default
	FindAll(ctx context.Context, filter StockFilter) ([]*Stock, int64, error)

	// FindIDsWithAvailableBatchesExpiringBefore returns ids of stocks, including
	// deactivated ones, holding an AVAILABLE batch that expires at or before t
	FindIDsWithAvailableBatchesExpiringBefore(ctx context.Context, t time.Time) ([]uuid.UUID, error)

	// FindMovements pages through a stock's ledger, newest first
	FindMovements(ctx context.Context, stockID uuid.UUID, filter shared.Filter) ([]Movement, int64, error)

	// Create stores a new stock. Returns shared.ErrAlreadyExists if the
	// product/location pair is taken.
	Create(ctx context.Context, stock *Stock) error

	// SaveWithLock stores a loaded stock if nobody else saved it since it
	// was loaded. Returns shared.ErrConcurrencyConflict otherwise.
	// Only ledger entries appended since load are inserted.
	SaveWithLock(ctx context.Context, stock *Stock) error
}
