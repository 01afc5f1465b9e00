/*
spec.go - Vehicle spec parsing and fixed-coupling expansion

INPUT SYNTAX (from the command layer):
  VEHICLE[+VEHICLE[!]...][/LINE]
  LINE:VEHICLE[+VEHICLE[!]...]

The '!' suffix marks the vehicle the rider physically occupied. With a single
vehicle the marker is implied; with several vehicles and no marker the spec is
ambiguous and rejected.

EXPANSION:
  The resolver expands explicit entries with their fixed-coupling groups from
  the vehicle catalog. Expansion is deterministic: identical input and catalog
  state always yield identical output, because downstream streak detection
  keys on exact vehicle identity and order.
*/
package ledger

import (
	"strings"
)

// =============================================================================
// PARSING
// =============================================================================

// SpecVehicle is one explicitly specified vehicle, before expansion.
type SpecVehicle struct {
	Number string
	Ridden bool
}

// ParsedSpec is the result of parsing a ride spec string.
type ParsedSpec struct {
	Vehicles []SpecVehicle
	Line     string // "" when the spec names no line
}

// ParseRideSpec parses both accepted spec syntaxes and applies the
// ridden-marker rules.
func ParseRideSpec(spec string) (ParsedSpec, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return ParsedSpec{}, &SpecSyntaxError{Spec: spec}
	}

	var vehiclesPart, line string
	if i := strings.Index(trimmed, ":"); i >= 0 {
		// LINE:VEHICLES
		line = foldWhitespace(trimmed[:i])
		vehiclesPart = trimmed[i+1:]
		if line == "" {
			return ParsedSpec{}, &SpecSyntaxError{Spec: spec}
		}
	} else if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		// VEHICLES/LINE
		vehiclesPart = trimmed[:i]
		line = foldWhitespace(trimmed[i+1:])
		if line == "" {
			return ParsedSpec{}, &SpecSyntaxError{Spec: spec}
		}
	} else {
		vehiclesPart = trimmed
	}

	tokens := strings.Split(vehiclesPart, "+")
	vehicles := make([]SpecVehicle, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	anyRidden := false
	for _, token := range tokens {
		number := foldWhitespace(token)
		ridden := false
		if stripped, ok := strings.CutSuffix(number, "!"); ok {
			number = strings.TrimSpace(stripped)
			ridden = true
			anyRidden = true
		}
		if number == "" {
			return ParsedSpec{}, &SpecSyntaxError{Spec: spec}
		}
		if seen[number] {
			return ParsedSpec{}, &DuplicateVehicleError{VehicleNumber: number}
		}
		seen[number] = true
		vehicles = append(vehicles, SpecVehicle{Number: number, Ridden: ridden})
	}

	if !anyRidden {
		if len(vehicles) == 1 {
			vehicles[0].Ridden = true
		} else {
			return ParsedSpec{}, ErrAmbiguousRiddenVehicle
		}
	}

	return ParsedSpec{Vehicles: vehicles, Line: line}, nil
}

// foldWhitespace trims leading/trailing whitespace and collapses interior
// whitespace runs to a single space.
func foldWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// =============================================================================
// COUPLING RESOLVER
// =============================================================================

// Resolver expands explicit vehicle entries with fixed-coupling membership
// from the catalog.
type Resolver struct {
	Catalog VehicleCatalog

	// AllowFixedCouplingCombos permits combining a fixed-coupled vehicle
	// with other vehicles in one spec. Off by default: a permanent coupling
	// already names its companions.
	AllowFixedCouplingCombos bool
}

// Expand turns explicit spec entries into the full ordered RideVehicle list.
//
// Explicit entries keep their caller order (SpecPosition 0..n-1). Coupling
// members that were not explicitly listed are appended afterwards, in the
// order their couplings were encountered, with SpecPosition continuing after
// the last explicit entry and FixedCouplingPosition taken from the catalog's
// canonical group order.
func (r *Resolver) Expand(company string, explicit []SpecVehicle) ([]RideVehicle, error) {
	if len(explicit) == 0 {
		return nil, ErrNoRiddenVehicle
	}

	if !r.AllowFixedCouplingCombos && len(explicit) > 1 {
		for _, e := range explicit {
			if info, ok := r.lookup(company, e.Number); ok && len(info.FixedCoupling) > 0 {
				return nil, &FixedCouplingComboError{VehicleNumber: e.Number}
			}
		}
	}

	out := make([]RideVehicle, 0, len(explicit))
	seen := make(map[string]bool, len(explicit))

	for i, e := range explicit {
		info, _ := r.lookup(company, e.Number)
		mode := CouplingExplicit
		if e.Ridden {
			mode = CouplingRidden
		}
		out = append(out, RideVehicle{
			VehicleNumber:         e.Number,
			VehicleType:           info.TypeCode,
			SpecPosition:          i,
			FixedCouplingPosition: couplingIndex(info, e.Number),
			CouplingMode:          mode,
		})
		seen[e.Number] = true
	}

	// Append coupling members that were not explicitly listed.
	next := len(explicit)
	for _, e := range explicit {
		info, ok := r.lookup(company, e.Number)
		if !ok {
			continue
		}
		for pos, member := range info.FixedCoupling {
			if seen[member] {
				continue
			}
			seen[member] = true
			memberInfo, _ := r.lookup(company, member)
			out = append(out, RideVehicle{
				VehicleNumber:         member,
				VehicleType:           memberInfo.TypeCode,
				SpecPosition:          next,
				FixedCouplingPosition: pos,
				CouplingMode:          CouplingFixed,
			})
			next++
		}
	}

	return out, nil
}

func (r *Resolver) lookup(company, number string) (VehicleInfo, bool) {
	if r.Catalog == nil {
		return VehicleInfo{}, false
	}
	return r.Catalog.Vehicle(company, number)
}

// couplingIndex returns the vehicle's position within its own fixed-coupling
// group, 0 for non-coupled vehicles.
func couplingIndex(info VehicleInfo, number string) int {
	for i, member := range info.FixedCoupling {
		if member == number {
			return i
		}
	}
	return 0
}
