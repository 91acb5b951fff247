package inventory

import "github.com/erp/inventory/internal/domain/shared"

// Inventory engine errors. Returned errors may carry a more specific message
// but always share the sentinel's code, so errors.Is matches them.
var (
	ErrDuplicateBatch          = shared.NewDomainError("DUPLICATE_BATCH", "Batch number already exists in this stock")
	ErrBatchNotFound           = shared.NewDomainError("BATCH_NOT_FOUND", "Batch not found in this stock")
	ErrInvalidQuantity         = shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	ErrInsufficientStock       = shared.NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrOverRelease             = shared.NewDomainError("OVER_RELEASE", "Release exceeds reserved quantity")
	ErrOverConsume             = shared.NewDomainError("OVER_CONSUME", "Consumption exceeds reserved quantity")
	ErrStockInactive           = shared.NewDomainError("STOCK_INACTIVE", "Stock is inactive")
	ErrInvalidStatusTransition = shared.NewDomainError("INVALID_STATUS_TRANSITION", "Batch status transition not allowed")
	ErrInvalidThreshold        = shared.NewDomainError("INVALID_THRESHOLD", "Threshold cannot be negative")
)
