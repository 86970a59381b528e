// Package errors defines the error taxonomy of the reconciliation engine:
// validation failures, missing records, store failures and partial group
// applies, with stack capture on every constructed error.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryStore          ErrorCategory = "store"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Validation errors
	CodeInvalidDateRange ErrorCode = "invalid_date_range"
	CodeEmptyIDList      ErrorCode = "empty_id_list"
	CodeInvalidArgument  ErrorCode = "invalid_argument"

	// Not-found errors
	CodeLedgerNotFound       ErrorCode = "ledger_transaction_not_found"
	CodeCounterpartyNotFound ErrorCode = "counterparty_transaction_not_found"

	// Store errors
	CodeReadFailed  ErrorCode = "store_read_failed"
	CodeWriteFailed ErrorCode = "store_write_failed"
	CodeTxFailed    ErrorCode = "store_transaction_failed"

	// Reconciliation errors
	CodePartialApply   ErrorCode = "partial_apply"
	CodeAlreadyMatched ErrorCode = "already_matched"
)

// EngineError is the base error type for all engine errors
type EngineError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *EngineError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a new EngineError
func New(category ErrorCategory, code ErrorCode, message string) *EngineError {
	return &EngineError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with EngineError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *EngineError {
	if err == nil {
		return nil
	}
	return &EngineError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// ValidationError creates a validation error for a malformed argument
func ValidationError(code ErrorCode, field string, value interface{}) *EngineError {
	return New(CategoryValidation, code,
		fmt.Sprintf("invalid value for '%s': %v", field, value)).
		WithContext("field", field).
		WithContext("value", value)
}

// NotFoundError creates a not-found error for a referenced record. Callers on
// the query surface normally translate this into a false/empty result instead
// of propagating it.
func NotFoundError(code ErrorCode, id string) *EngineError {
	return New(CategoryNotFound, code, fmt.Sprintf("record not found: %s", id)).
		WithContext("id", id)
}

// StoreError wraps a failed read or write against one of the backing stores.
// Store errors always abort the operation and surface to the caller.
func StoreError(code ErrorCode, operation string, err error) *EngineError {
	return Wrap(err, CategoryStore, code,
		fmt.Sprintf("store operation failed: %s", operation)).
		WithContext("operation", operation)
}

// IsNotFound reports whether the error chain contains a not-found error
func IsNotFound(err error) bool {
	if ee, ok := AsEngineError(err); ok {
		return ee.Category == CategoryNotFound
	}
	return false
}

// IsStoreError reports whether the error chain contains a store error
func IsStoreError(err error) bool {
	if ee, ok := AsEngineError(err); ok {
		return ee.Category == CategoryStore
	}
	return false
}

// AsEngineError extracts an EngineError from an error chain
func AsEngineError(err error) (*EngineError, bool) {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr, true
	}
	return nil, false
}

// PartialApplyError reports that a multi-record group write failed part way
// through, naming the members whose writes had already succeeded so the caller
// can reconcile or retry.
type PartialApplyError struct {
	GroupID      string   `json:"groupID"`
	SucceededIDs []string `json:"succeededIDs"`
	FailedID     string   `json:"failedID"`
	Cause        error    `json:"-"`
}

// Error implements the error interface
func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("partial apply of group %s: %d member(s) written [%s] before %s failed: %v",
		e.GroupID, len(e.SucceededIDs), strings.Join(e.SucceededIDs, ", "), e.FailedID, e.Cause)
}

// Unwrap returns the underlying cause error
func (e *PartialApplyError) Unwrap() error {
	return e.Cause
}

// NewPartialApplyError creates a PartialApplyError
func NewPartialApplyError(groupID string, succeeded []string, failedID string, cause error) *PartialApplyError {
	return &PartialApplyError{
		GroupID:      groupID,
		SucceededIDs: succeeded,
		FailedID:     failedID,
		Cause:        cause,
	}
}
