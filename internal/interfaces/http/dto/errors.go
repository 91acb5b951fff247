package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation and input error codes
const (
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeLockUnavailable     = "ERR_LOCK_UNAVAILABLE"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
)

// Stock error codes
const (
	ErrCodeDuplicateBatch          = "ERR_DUPLICATE_BATCH"
	ErrCodeBatchNotFound           = "ERR_BATCH_NOT_FOUND"
	ErrCodeInvalidQuantity         = "ERR_INVALID_QUANTITY"
	ErrCodeInvalidThreshold        = "ERR_INVALID_THRESHOLD"
	ErrCodeInsufficientStock       = "ERR_INSUFFICIENT_STOCK"
	ErrCodeOverRelease             = "ERR_OVER_RELEASE"
	ErrCodeOverConsume             = "ERR_OVER_CONSUME"
	ErrCodeStockInactive           = "ERR_STOCK_INACTIVE"
	ErrCodeInvalidStatusTransition = "ERR_INVALID_STATUS_TRANSITION"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodeInvalidQuantity:  http.StatusBadRequest,
	ErrCodeInvalidThreshold: http.StatusBadRequest,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeBatchNotFound: http.StatusNotFound,

	// Conflicts -> 409; the client may retry or pick another batch number
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeLockUnavailable:     http.StatusConflict,
	ErrCodeDuplicateBatch:      http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:            http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:       http.StatusUnprocessableEntity,
	ErrCodeOverRelease:             http.StatusUnprocessableEntity,
	ErrCodeOverConsume:             http.StatusUnprocessableEntity,
	ErrCodeStockInactive:           http.StatusUnprocessableEntity,
	ErrCodeInvalidStatusTransition: http.StatusUnprocessableEntity,

	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                 ErrCodeNotFound,
	"ALREADY_EXISTS":            ErrCodeAlreadyExists,
	"INVALID_INPUT":             ErrCodeInvalidInput,
	"INVALID_STATE":             ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":      ErrCodeConcurrencyConflict,
	"LOCK_UNAVAILABLE":          ErrCodeLockUnavailable,
	"DUPLICATE_BATCH":           ErrCodeDuplicateBatch,
	"BATCH_NOT_FOUND":           ErrCodeBatchNotFound,
	"INVALID_QUANTITY":          ErrCodeInvalidQuantity,
	"INVALID_THRESHOLD":         ErrCodeInvalidThreshold,
	"INSUFFICIENT_STOCK":        ErrCodeInsufficientStock,
	"OVER_RELEASE":              ErrCodeOverRelease,
	"OVER_CONSUME":              ErrCodeOverConsume,
	"STOCK_INACTIVE":            ErrCodeStockInactive,
	"INVALID_STATUS_TRANSITION": ErrCodeInvalidStatusTransition,
	"INVALID_PRODUCT":           ErrCodeInvalidInput,
	"INVALID_LOCATION":          ErrCodeInvalidInput,
	"INVALID_BATCH_NUMBER":      ErrCodeInvalidInput,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
