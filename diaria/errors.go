/*
errors.go - Centralized error types for the per-diem core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The calculation functions themselves never fail; these errors belong to
  input validation, the editing session, persistence and the rate source.

ERROR CATEGORIES:
  1. Validation errors - Period input rejected before it reaches the core
  2. Session errors - Save/edit preconditions
  3. Store errors - Missing missions, malformed snapshots
  4. Source errors - Rate table could not be obtained

USAGE:
  if errors.Is(err, diaria.ErrInvalidPeriod) {
      // ask the user for another end date
  }

SEE ALSO:
  - validate.go: Produces PeriodValidationError
  - session.go: Uses ErrNoPeriods, ErrPeriodNotFound
  - ratesource/fetcher.go: Wraps ErrRateTableUnavailable
*/
package diaria

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidHeadcount is returned when a period covers no one.
	ErrInvalidHeadcount = errors.New("invalid headcount: must be positive")

	// ErrMissingGroup is returned when a period has no group, or a group
	// the current rate table does not know.
	ErrMissingGroup = errors.New("unknown or missing group")

	// ErrMissingLocality is the locality counterpart of ErrMissingGroup.
	ErrMissingLocality = errors.New("unknown or missing locality")

	// ErrNoPeriods is returned when saving or exporting an empty mission.
	ErrNoPeriods = errors.New("mission has no periods")

	// ErrPeriodNotFound is returned when editing a period id that is not
	// part of the current session.
	ErrPeriodNotFound = errors.New("period not found")

	// ErrMissionNotFound is returned by stores for unknown mission ids.
	ErrMissionNotFound = errors.New("mission not found")

	// ErrInvalidSnapshot is returned when a mission file cannot be decoded.
	ErrInvalidSnapshot = errors.New("invalid mission snapshot")

	// ErrRateTableUnavailable is returned when no rate table is loaded or
	// the remote source failed after all retries.
	ErrRateTableUnavailable = errors.New("rate table unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PeriodValidationError names the offending field of a rejected period.
type PeriodValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *PeriodValidationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *PeriodValidationError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidHeadcount) ||
		errors.Is(err, ErrMissingGroup) ||
		errors.Is(err, ErrMissingLocality) ||
		errors.Is(err, ErrNoPeriods) ||
		errors.Is(err, ErrInvalidSnapshot)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMissionNotFound) ||
		errors.Is(err, ErrPeriodNotFound)
}
