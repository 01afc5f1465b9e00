/*
errors.go - Centralized error types for the ride ledger

ERROR CATEGORIES (see the taxonomy the API layer maps to status codes):
  1. Input/syntax errors - malformed vehicle spec, ambiguous ridden marker
  2. Authorization errors - admin-only fields, foreign or too-old rides
  3. Not-found errors - selector resolves to no ride
  4. Integrity violations - duplicate vehicle, zero ridden vehicles

All persistence-affecting operations are all-or-nothing: when any of these
errors is returned, the ledger is unchanged.
*/
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSpecSyntax is returned when a vehicle spec string cannot be parsed.
	ErrSpecSyntax = errors.New("unknown vehicle spec syntax")

	// ErrAmbiguousRiddenVehicle is returned when a multi-vehicle spec does
	// not mark which vehicle was actually ridden.
	ErrAmbiguousRiddenVehicle = errors.New("ambiguous ridden vehicle: mark one with '!'")

	// ErrFixedCouplingCombo is returned when a fixed-coupled vehicle is
	// combined with other vehicles in one spec.
	ErrFixedCouplingCombo = errors.New("fixed-coupled vehicle cannot be combined with other vehicles")

	// ErrDuplicateVehicle is returned when the same vehicle number appears
	// twice in one ride.
	ErrDuplicateVehicle = errors.New("duplicate vehicle within ride")

	// ErrNoRiddenVehicle is returned when a ride would end up without any
	// Ridden-mode vehicle.
	ErrNoRiddenVehicle = errors.New("ride has no ridden vehicle")

	// ErrInvalidCouplingMode is returned for a coupling mode outside R/E/F.
	ErrInvalidCouplingMode = errors.New("invalid coupling mode")

	// ErrUnauthorized is returned when the caller lacks the privilege for
	// the requested operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRideNotFound is returned when a selector resolves to no ride.
	ErrRideNotFound = errors.New("ride not found")

	// ErrTooOldToModify is returned when a non-admin tries to modify a ride
	// outside the configured recency window.
	ErrTooOldToModify = errors.New("ride too old to modify")

	// ErrNothingToChange is returned for an amendment with an empty change set.
	ErrNothingToChange = errors.New("nothing to change")

	// ErrDeleteConflictsWithChanges is returned when an amendment both
	// deletes a ride and changes its properties.
	ErrDeleteConflictsWithChanges = errors.New("cannot delete a ride and change its properties at once")

	// ErrUnknownCompany is returned when a company outside the configured
	// set is referenced.
	ErrUnknownCompany = errors.New("unknown company")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SpecSyntaxError reports which spec string failed to parse.
type SpecSyntaxError struct {
	Spec string
}

func (e *SpecSyntaxError) Error() string {
	return fmt.Sprintf("failed to parse vehicle spec %q", e.Spec)
}

func (e *SpecSyntaxError) Unwrap() error { return ErrSpecSyntax }

// DuplicateVehicleError reports which vehicle number was duplicated.
type DuplicateVehicleError struct {
	VehicleNumber string
}

func (e *DuplicateVehicleError) Error() string {
	return fmt.Sprintf("vehicle %s appears more than once in ride", e.VehicleNumber)
}

func (e *DuplicateVehicleError) Unwrap() error { return ErrDuplicateVehicle }

// FixedCouplingComboError reports the vehicle whose fixed coupling forbids
// the combination.
type FixedCouplingComboError struct {
	VehicleNumber string
}

func (e *FixedCouplingComboError) Error() string {
	return fmt.Sprintf("vehicle %s is part of a fixed coupling and cannot be ridden in combination with other vehicles", e.VehicleNumber)
}

func (e *FixedCouplingComboError) Unwrap() error { return ErrFixedCouplingCombo }

// TooOldError reports how far outside the edit window a ride is.
type TooOldError struct {
	RideID RideID
	Age    time.Duration
	Window time.Duration
}

func (e *TooOldError) Error() string {
	return fmt.Sprintf("ride %d is %s old, outside the %s edit window", e.RideID, e.Age.Round(time.Second), e.Window)
}

func (e *TooOldError) Unwrap() error { return ErrTooOldToModify }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrSpecSyntax) ||
		errors.Is(err, ErrAmbiguousRiddenVehicle) ||
		errors.Is(err, ErrFixedCouplingCombo) ||
		errors.Is(err, ErrDuplicateVehicle) ||
		errors.Is(err, ErrNoRiddenVehicle) ||
		errors.Is(err, ErrNothingToChange) ||
		errors.Is(err, ErrDeleteConflictsWithChanges) ||
		errors.Is(err, ErrUnknownCompany)
}

// IsUnauthorized returns true for authorization failures, including the
// recency-window refusal.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrTooOldToModify)
}

// IsNotFound returns true if the error indicates a missing ride.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRideNotFound)
}
