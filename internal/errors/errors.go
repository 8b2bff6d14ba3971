// Package errors provides structured error types for the OTHD toolkit.
// All errors include a category, code, and message so callers can
// distinguish bad requests from bad data from environmental failures.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by their origin.
type ErrorCategory string

const (
	// ErrCategoryValidation covers rejected requests: bad column sets,
	// bad arguments, preconditions checked before any I/O side effect.
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	// ErrCategoryFormat covers malformed data in a source or database.
	// Format errors are fatal to the run; records are never skipped.
	ErrCategoryFormat ErrorCategory = "FORMAT"
	// ErrCategoryCapability covers requests a source cannot serve, such
	// as a column it does not advertise. Always a caller bug.
	ErrCategoryCapability ErrorCategory = "CAPABILITY"
	// ErrCategoryStorage covers persistence and transport failures.
	// Storage errors are propagated untouched and never retried.
	ErrCategoryStorage ErrorCategory = "STORAGE"
)

// Error codes for each category.
const (
	// Validation codes
	CodeEmptyColumns       = "EMPTY_COLUMNS"
	CodeSizeOnly           = "SIZE_ONLY"
	CodeUnknownColumn      = "UNKNOWN_COLUMN"
	CodeDestExists         = "DEST_EXISTS"
	CodeInputMissing       = "INPUT_MISSING"
	CodeNameTooLong        = "NAME_TOO_LONG"
	CodeDescriptionTooLong = "DESCRIPTION_TOO_LONG"
	CodeNoCSVColumns       = "NO_CSV_COLUMNS"
	CodeBadDialect         = "BAD_DIALECT"
	CodeBadInputURL        = "BAD_INPUT_URL"

	// Format codes
	CodeBadHex       = "BAD_HEX"
	CodeBadInteger   = "BAD_INTEGER"
	CodeMissingField = "MISSING_FIELD"
	CodeBadCSV       = "BAD_CSV"
	CodeBadHeader    = "BAD_HEADER"
	CodeBadMarker    = "BAD_MARKER"
	CodeNotOTHD      = "NOT_OTHD"

	// Capability codes
	CodeUnsupportedColumn = "UNSUPPORTED_COLUMN"
	CodeSourceConsumed    = "SOURCE_CONSUMED"

	// Storage codes
	CodeCreateFailed = "CREATE_FAILED"
	CodeOpenFailed   = "OPEN_FAILED"
	CodeReadFailed   = "READ_FAILED"
	CodeWriteFailed  = "WRITE_FAILED"
	CodeStageFailed  = "STAGE_FAILED"
)

// OTHDError is the structured error type used throughout the toolkit.
type OTHDError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
}

// Error returns a formatted error string.
func (e *OTHDError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *OTHDError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *OTHDError) Is(target error) bool {
	var t *OTHDError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new OTHDError.
func New(category ErrorCategory, code, message string) *OTHDError {
	return &OTHDError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new OTHDError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *OTHDError {
	return &OTHDError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an OTHDError.
func GetCategory(err error) ErrorCategory {
	var oe *OTHDError
	if errors.As(err, &oe) {
		return oe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an OTHDError.
func GetCode(err error) string {
	var oe *OTHDError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

// IsValidation reports whether the error chain carries a validation error.
func IsValidation(err error) bool {
	return GetCategory(err) == ErrCategoryValidation
}

// IsFormat reports whether the error chain carries a format error.
func IsFormat(err error) bool {
	return GetCategory(err) == ErrCategoryFormat
}

// IsCapability reports whether the error chain carries a capability error.
func IsCapability(err error) bool {
	return GetCategory(err) == ErrCategoryCapability
}

// IsStorage reports whether the error chain carries a storage error.
func IsStorage(err error) bool {
	return GetCategory(err) == ErrCategoryStorage
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *OTHDError {
	return New(ErrCategoryValidation, code, message)
}

func NewFormatError(code, message string, cause error) *OTHDError {
	return Wrap(ErrCategoryFormat, code, message, cause)
}

func NewCapabilityError(code, message string) *OTHDError {
	return New(ErrCategoryCapability, code, message)
}

func NewStorageError(code, message string, cause error) *OTHDError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}
