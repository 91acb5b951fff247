package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/inventory/internal/domain/inventory"
	"github.com/erp/inventory/internal/domain/shared"
	"github.com/erp/inventory/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// batchUpsertColumns are overwritten when a batch row already exists
var batchUpsertColumns = []string{
	"position", "quantity", "available_quantity", "reserved_quantity", "status",
	"production_date", "expiration_date", "supplier", "cost", "location",
	"metadata", "updated_at",
}

// GormStockRepository implements inventory.StockRepository using GORM
type GormStockRepository struct {
	db *gorm.DB
}

// NewGormStockRepository creates a new GormStockRepository
func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

func preloadBatches(db *gorm.DB) *gorm.DB {
	return db.Preload("Batches", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	})
}

// FindByID loads a stock with its batches and full ledger
func (r *GormStockRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Stock, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByProductAndLocation loads the stock for a product/location pair
func (r *GormStockRepository) FindByProductAndLocation(ctx context.Context, productID, locationID uuid.UUID) (*inventory.Stock, error) {
	return r.findOne(ctx, "product_id = ? AND location_id = ?", productID, locationID)
}

func (r *GormStockRepository) findOne(ctx context.Context, query string, args ...any) (*inventory.Stock, error) {
	db := r.db.WithContext(ctx)

	var model models.StockModel
	if err := preloadBatches(db).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	var movements []models.MovementModel
	if err := db.Where("stock_id = ?", model.ID).Order("sequence ASC").Find(&movements).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(movements), nil
}

// ExistsByProductAndLocation reports whether a stock already exists for the pair
func (r *GormStockRepository) ExistsByProductAndLocation(ctx context.Context, productID, locationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.StockModel{}).
		Where("product_id = ? AND location_id = ?", productID, locationID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll lists stocks with their batches but without the ledger
func (r *GormStockRepository) FindAll(ctx context.Context, filter inventory.StockFilter) ([]*inventory.Stock, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := r.applyStockFilter(db.Model(&models.StockModel{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, StockSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query := preloadBatches(r.applyStockFilter(db.Model(&models.StockModel{}), filter)).
		Order(orderBy + " " + orderDir).
		Order("id ASC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.StockModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	stocks := make([]*inventory.Stock, len(rows))
	for i := range rows {
		stocks[i] = rows[i].ToDomain(nil)
	}
	return stocks, total, nil
}

func (r *GormStockRepository) applyStockFilter(query *gorm.DB, filter inventory.StockFilter) *gorm.DB {
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.LocationID != nil {
		query = query.Where("location_id = ?", *filter.LocationID)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.LowStock {
		query = query.Where("minimum_level IS NOT NULL AND available_quantity <= minimum_level")
	}
	if code, ok := filter.Filters["product_code"].(string); ok && code != "" {
		query = query.Where("product_code = ?", code)
	}
	return query
}

// FindIDsWithAvailableBatchesExpiringBefore returns stocks, active or not,
// holding an AVAILABLE batch that expires at or before t
func (r *GormStockRepository) FindIDsWithAvailableBatchesExpiringBefore(ctx context.Context, t time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.StockModel{}).
		Distinct("stocks.id").
		Joins("JOIN stock_batches ON stock_batches.stock_id = stocks.id").
		Where("stock_batches.status = ?", inventory.BatchStatusAvailable.String()).
		Where("stock_batches.expiration_date IS NOT NULL AND stock_batches.expiration_date <= ?", t).
		Pluck("stocks.id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindMovements pages through a stock's ledger, newest first unless the filter says otherwise
func (r *GormStockRepository) FindMovements(ctx context.Context, stockID uuid.UUID, filter shared.Filter) ([]inventory.Movement, int64, error) {
	scoped := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.MovementModel{}).Where("stock_id = ?", stockID)
		if batch, ok := filter.Filters["batch_number"].(string); ok && batch != "" {
			query = query.Where("batch_number = ?", batch)
		}
		if typ, ok := filter.Filters["movement_type"].(string); ok && typ != "" {
			query = query.Where("movement_type = ?", typ)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, MovementSortFields, "sequence")
	query := scoped().Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.MovementModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	movements := make([]inventory.Movement, len(rows))
	for i := range rows {
		movements[i] = rows[i].ToDomain()
	}
	return movements, total, nil
}

// Create stores a new stock with its batches and ledger
func (r *GormStockRepository) Create(ctx context.Context, stock *inventory.Stock) error {
	var model models.StockModel
	model.FromDomain(stock)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			if isDuplicateError(err) {
				return shared.NewDomainError(shared.ErrAlreadyExists.Code,
					"a stock already exists for this product and location")
			}
			return err
		}
		if err := upsertBatches(tx, model.Batches); err != nil {
			return err
		}
		return insertMovements(tx, stock.PendingMovements())
	})
	if err != nil {
		return err
	}
	stock.MarkPersisted()
	return nil
}

// SaveWithLock updates the stock row only if its version still matches the
// version loaded, then upserts batches and appends new ledger entries.
func (r *GormStockRepository) SaveWithLock(ctx context.Context, stock *inventory.Stock) error {
	if stock.IsNew() {
		return r.Create(ctx, stock)
	}

	var model models.StockModel
	model.FromDomain(stock)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.StockModel{}).
			Where("id = ? AND version = ?", stock.ID, stock.PersistedVersion()).
			Updates(map[string]any{
				"total_quantity":     model.TotalQuantity,
				"available_quantity": model.AvailableQuantity,
				"reserved_quantity":  model.ReservedQuantity,
				"minimum_level":      model.MinimumLevel,
				"maximum_level":      model.MaximumLevel,
				"reorder_point":      model.ReorderPoint,
				"is_active":          model.IsActive,
				"last_movement_at":   model.LastMovementAt,
				"version":            model.Version,
				"updated_at":         model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError(shared.ErrConcurrencyConflict.Code,
				"stock was modified by another transaction")
		}
		if err := upsertBatches(tx, model.Batches); err != nil {
			return err
		}
		return insertMovements(tx, stock.PendingMovements())
	})
	if err != nil {
		return err
	}
	stock.MarkPersisted()
	return nil
}

func upsertBatches(tx *gorm.DB, batches []models.BatchModel) error {
	if len(batches) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stock_id"}, {Name: "batch_number"}},
		DoUpdates: clause.AssignmentColumns(batchUpsertColumns),
	}).Create(&batches).Error
}

func insertMovements(tx *gorm.DB, movements []inventory.Movement) error {
	if len(movements) == 0 {
		return nil
	}
	rows := make([]models.MovementModel, len(movements))
	for i, mv := range movements {
		rows[i] = models.MovementFromDomain(mv)
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

var _ inventory.StockRepository = (*GormStockRepository)(nil)
