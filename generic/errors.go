/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these to HTTP statuses with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Validation errors - Bad year, month, field or amount (HTTP 400)
  2. Not-found errors  - Record missing after upsert, unknown contribution (HTTP 404)
  3. Aggregation errors - A source sum failed; degraded to zero by the caller
  4. Store errors - Everything else (HTTP 500)

USAGE:
  if errors.Is(err, generic.ErrInvalidMonth) {
      // 400
  }

  var aggErr *generic.AggregationError
  if errors.As(err, &aggErr) {
      log.Warn("aggregation degraded", zap.String("field", string(aggErr.Field)))
  }

SEE ALSO:
  - calculator.go: Produces AggregationError
  - api/errors.go: HTTP mapping
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidYear is returned when a year is outside [MinYear, MaxYear].
	ErrInvalidYear = errors.New("invalid year")

	// ErrInvalidMonth is returned when a month is outside [1, 12].
	ErrInvalidMonth = errors.New("invalid month")

	// ErrUnknownField is returned when an update names a field the kind does not have.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidAmount is returned when an admin value is negative.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrEmptyUpdate is returned when an update carries no field and no notes.
	ErrEmptyUpdate = errors.New("no fields to update")

	// ErrRecordNotFound is returned when a record is absent after an upsert.
	// Upsert always creates, so this indicates a store inconsistency.
	ErrRecordNotFound = errors.New("record not found")

	// ErrAggregationFailed is returned when a source sum cannot be computed.
	ErrAggregationFailed = errors.New("aggregation failed")

	// ErrUnknownKind is returned when a kind id is not registered.
	ErrUnknownKind = errors.New("unknown record kind")

	// ErrInvalidKind is returned when a kind definition is malformed.
	ErrInvalidKind = errors.New("invalid kind definition")

	// ErrInvalidStatus is returned for a contribution status outside the four known ones.
	ErrInvalidStatus = errors.New("invalid contribution status")

	// ErrInvalidSource is returned when a contribution or credit row is malformed.
	ErrInvalidSource = errors.New("invalid source row")

	// ErrContributionNotFound is returned when a contribution id does not exist.
	ErrContributionNotFound = errors.New("contribution not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
	err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// NewValidationError builds a ValidationError wrapping a sentinel.
func NewValidationError(field, reason string, sentinel error) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, err: sentinel}
}

// AggregationError describes a failed source sum for one field of one month.
type AggregationError struct {
	Kind   KindID
	Field  FieldName
	Period MonthPeriod
	Err    error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate %s.%s for %s: %v", e.Kind, e.Field, e.Period, e.Err)
}

func (e *AggregationError) Unwrap() []error {
	return []error{ErrAggregationFailed, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidYear) ||
		errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrEmptyUpdate) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidSource)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrContributionNotFound)
}
