package barcode

import (
	"errors"
	"fmt"

	"github.com/retailops/backend/internal/domain/shared"
)

// Domain input errors
var (
	ErrInvalidBarcodeType  = shared.NewDomainError("INVALID_BARCODE_TYPE", "Barcode type must be one of: unit, product")
	ErrCounterOverflow     = shared.NewDomainError("COUNTER_OVERFLOW", "Counter exceeds the 6-digit structured code range")
	ErrNegativeCounter     = shared.NewDomainError("INVALID_COUNTER", "Counter cannot be negative")
	ErrInvalidPrefix       = shared.NewDomainError("INVALID_PREFIX_CONFIG", "Prefix must be 1 to 10 uppercase letters or digits")
	ErrInvalidNamespace    = shared.NewDomainError("INVALID_NAMESPACE_CODE", "Namespace code must be exactly 3 digits")
	ErrInvalidChecksumBody = shared.NewDomainError("INVALID_CHECKSUM_BODY", "Checksum body must contain only digits")
	ErrEmptyOwner          = shared.NewDomainError("INVALID_OWNER", "Owner entity type and id cannot be empty")
	ErrOwnerTooLong        = shared.NewDomainError("INVALID_OWNER", "Owner entity type cannot exceed 50 characters and id 100 characters")
	ErrEmptyCode           = shared.NewDomainError("INVALID_CODE", "Code cannot be empty")
	ErrCodeTooLong         = shared.NewDomainError("INVALID_CODE", "Code cannot exceed 64 characters")
	ErrAlreadyRetired      = shared.NewDomainError("BARCODE_ALREADY_RETIRED", "Barcode is already retired")
	ErrSelfCheckFailed     = shared.NewDomainError("SELF_CHECK_FAILED", "Generated candidate failed validation")
)

// ErrStorageUnavailable is matched by every storage failure via errors.Is
var ErrStorageUnavailable = shared.NewDomainError("STORAGE_UNAVAILABLE", "Barcode storage is unavailable")

// StorageError wraps a failed round trip to durable storage.
// It is fatal for the current call and never retried by the orchestrator.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err as a storage failure of operation op
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("barcode storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStorageUnavailable
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// ConflictReason describes which uniqueness rule a claim or reservation lost on
type ConflictReason string

const (
	ReasonCodeTaken         ConflictReason = "code_taken"
	ReasonOwnerHasCode      ConflictReason = "owner_has_code"
	ReasonCounterContention ConflictReason = "counter_contention"
)

// ConflictError is returned when a claim or counter reservation loses a race
type ConflictError struct {
	Code   string
	Reason ConflictReason
}

// NewConflictError creates a conflict for the given code and reason
func NewConflictError(code string, reason ConflictReason) *ConflictError {
	return &ConflictError{Code: code, Reason: reason}
}

func (e *ConflictError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("barcode conflict: %s", e.Reason)
	}
	return fmt.Sprintf("barcode conflict on %q: %s", e.Code, e.Reason)
}

// Retryable reports whether a fresh counter value can resolve the conflict
func (e *ConflictError) Retryable() bool {
	return e.Reason == ReasonCodeTaken || e.Reason == ReasonCounterContention
}

// IsConflict reports whether err is a ConflictError with the given reason
func IsConflict(err error, reason ConflictReason) bool {
	var ce *ConflictError
	return errors.As(err, &ce) && ce.Reason == reason
}

// GenerationExhaustedError is returned when every attempt lost a conflict
type GenerationExhaustedError struct {
	Type     BarcodeType
	Attempts int
	LastErr  error
}

func (e *GenerationExhaustedError) Error() string {
	return fmt.Sprintf("could not generate a unique %s code after %d attempts", e.Type, e.Attempts)
}

func (e *GenerationExhaustedError) Unwrap() error {
	return e.LastErr
}
