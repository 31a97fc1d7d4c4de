package domain

import (
	"errors"
	"fmt"
	"time"
)

// Application error codes
const (
	EINVALID      = "invalid"            // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized"       // Authentication required
	EFORBIDDEN    = "forbidden"          // Permission denied
	ENOTFOUND     = "not_found"          // Resource not found
	ECONFLICT     = "conflict"           // Optimistic concurrency failure
	ETRANSITION   = "invalid_transition" // Action not legal from the current state
	ENOTELIGIBLE  = "not_eligible"       // Post-rental phase not open yet
	ESTALE        = "stale_submission"   // Acting on a submission that is no longer current
	EALREADY      = "already_processed"  // Same decision already recorded
	EUPLOAD       = "upload_failed"      // Attachment store unavailable
	EPAYMENT      = "payment"            // Payment required
	ERATELIMIT    = "rate_limited"       // Too many requests
	EINTERNAL     = "internal"           // Internal server error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "inspection.submit_pre")
	Message string // Human-readable message
	Field   string // Offending input field, when the error is about one

	// EligibleAt is set on ENOTELIGIBLE errors so clients can re-prompt later.
	EligibleAt *time.Time

	Err error // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return EINVALID
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "Validation failed"
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// ErrorField returns the offending field of the error, if any.
func ErrorField(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// ErrorEligibleAt returns the instant a not-eligible action becomes possible.
func ErrorEligibleAt(err error) *time.Time {
	var e *Error
	if errors.As(err, &e) {
		return e.EligibleAt
	}
	return nil
}

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// InvalidField creates a validation error naming the offending field.
func InvalidField(op, field, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Field:   field,
		Message: message,
	}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Conflict creates an optimistic concurrency error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// InvalidTransition reports an action that is not legal from the given status.
func InvalidTransition(op string, from InspectionStatus, action string) *Error {
	return &Error{
		Code:    ETRANSITION,
		Op:      op,
		Message: fmt.Sprintf("cannot %s while inspection is %s", action, from),
	}
}

// NotEligible reports a post-rental action attempted before the booking ended.
func NotEligible(op string, eligibleAt time.Time) *Error {
	at := eligibleAt.UTC()
	return &Error{
		Code:       ENOTELIGIBLE,
		Op:         op,
		Message:    fmt.Sprintf("post-rental inspection opens at %s", at.Format(time.RFC3339)),
		EligibleAt: &at,
	}
}

// Stale reports an action against a submission that is no longer current.
func Stale(op, message string) *Error {
	return &Error{
		Code:    ESTALE,
		Op:      op,
		Message: message,
	}
}

// AlreadyProcessed reports a decision that was already recorded.
func AlreadyProcessed(op, message string) *Error {
	return &Error{
		Code:    EALREADY,
		Op:      op,
		Message: message,
	}
}

// UploadFailed wraps an attachment store failure.
func UploadFailed(err error, op, message string) *Error {
	return &Error{
		Code:    EUPLOAD,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// PaymentRequired reports a third-party inspection that has not been paid.
func PaymentRequired(op, message string) *Error {
	return &Error{
		Code:    EPAYMENT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents field-level validation errors.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

// NewValidationError creates a new validation error with the first field error.
func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{
		Op: op,
		Fields: map[string]string{
			field: message,
		},
	}
}

// AddFieldError adds a field error to an existing validation error.
// If err is not a ValidationError, returns a new one.
func AddFieldError(err error, field, message string) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return NewValidationError("", field, message)
}
