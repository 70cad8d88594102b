package dto

import "net/http"

// Error codes returned in ErrorInfo.Code. Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeCancelled is used when the client went away before the request finished
	ErrCodeCancelled = "ERR_CANCELLED"
)

// Validation error codes
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
	ErrCodeValidationRange    = "ERR_VALIDATION_RANGE"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeCounterOverflow is used when a counter ran past the 6-digit range
	ErrCodeCounterOverflow = "ERR_COUNTER_OVERFLOW"
)

// Input error codes
const (
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
)

// Availability error codes
const (
	// ErrCodeGenerationExhausted is used when every generation attempt lost a conflict
	ErrCodeGenerationExhausted = "ERR_GENERATION_EXHAUSTED"
	// ErrCodeStorageUnavailable is used when the counter store or registry cannot be reached
	ErrCodeStorageUnavailable = "ERR_STORAGE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:   http.StatusInternalServerError,
	ErrCodeInternal:  http.StatusInternalServerError,
	ErrCodeCancelled: 499,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState:    http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:    http.StatusUnprocessableEntity,
	ErrCodeCounterOverflow: http.StatusUnprocessableEntity,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	ErrCodeGenerationExhausted: http.StatusServiceUnavailable,
	ErrCodeStorageUnavailable:  http.StatusServiceUnavailable,
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
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,

	"INVALID_BARCODE_TYPE":   ErrCodeInvalidInput,
	"INVALID_FORMAT":         ErrCodeInvalidInput,
	"INVALID_PREFIX_CONFIG":  ErrCodeInvalidInput,
	"INVALID_NAMESPACE_CODE": ErrCodeInvalidInput,
	"INVALID_CHECKSUM_BODY":  ErrCodeInvalidInput,
	"INVALID_OWNER":          ErrCodeInvalidInput,
	"INVALID_CODE":           ErrCodeInvalidInput,
	"INVALID_COUNTER":        ErrCodeInvalidInput,
	"BULK_EMPTY":             ErrCodeInvalidInput,
	"BULK_TOO_LARGE":         ErrCodeValidationRange,

	"COUNTER_OVERFLOW":        ErrCodeCounterOverflow,
	"BARCODE_ALREADY_RETIRED": ErrCodeInvalidState,
	"SELF_CHECK_FAILED":       ErrCodeInternal,
	"STORAGE_UNAVAILABLE":     ErrCodeStorageUnavailable,
}

// NormalizeErrorCode converts a domain error code to its API code.
// Codes without a mapping are returned unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
