package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRideSpec_SingleVehicle(t *testing.T) {
	// GIVEN a bare vehicle number
	// WHEN parsing
	parsed, err := ParseRideSpec("4012")

	// THEN the single vehicle is implicitly ridden, no line
	require.NoError(t, err)
	require.Len(t, parsed.Vehicles, 1)
	assert.Equal(t, "4012", parsed.Vehicles[0].Number)
	assert.True(t, parsed.Vehicles[0].Ridden)
	assert.Equal(t, "", parsed.Line)
}

func TestParseRideSpec_SlashLine(t *testing.T) {
	parsed, err := ParseRideSpec("4012/1")

	require.NoError(t, err)
	require.Len(t, parsed.Vehicles, 1)
	assert.Equal(t, "4012", parsed.Vehicles[0].Number)
	assert.Equal(t, "1", parsed.Line)
}

func TestParseRideSpec_ColonLine(t *testing.T) {
	parsed, err := ParseRideSpec("U6:4012")

	require.NoError(t, err)
	require.Len(t, parsed.Vehicles, 1)
	assert.Equal(t, "4012", parsed.Vehicles[0].Number)
	assert.Equal(t, "U6", parsed.Line)
}

func TestParseRideSpec_CoupledWithMarker(t *testing.T) {
	// GIVEN a coupled set with the ridden marker on the second vehicle
	parsed, err := ParseRideSpec("4012+4013!/1")

	require.NoError(t, err)
	require.Len(t, parsed.Vehicles, 2)
	assert.Equal(t, "4012", parsed.Vehicles[0].Number)
	assert.False(t, parsed.Vehicles[0].Ridden)
	assert.Equal(t, "4013", parsed.Vehicles[1].Number)
	assert.True(t, parsed.Vehicles[1].Ridden)
	assert.Equal(t, "1", parsed.Line)
}

func TestParseRideSpec_AmbiguousRidden(t *testing.T) {
	// GIVEN multiple vehicles and no ridden marker
	_, err := ParseRideSpec("4012+4013")

	// THEN the spec is rejected as ambiguous
	assert.ErrorIs(t, err, ErrAmbiguousRiddenVehicle)
}

func TestParseRideSpec_DuplicateVehicle(t *testing.T) {
	_, err := ParseRideSpec("4012+4012!")

	assert.ErrorIs(t, err, ErrDuplicateVehicle)
	var dup *DuplicateVehicleError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "4012", dup.VehicleNumber)
}

func TestParseRideSpec_WhitespaceFolding(t *testing.T) {
	// GIVEN sloppy whitespace around tokens and inside the vehicle number
	parsed, err := ParseRideSpec("  503   01 ! +  503 02  /  N1 ")

	require.NoError(t, err)
	require.Len(t, parsed.Vehicles, 2)
	assert.Equal(t, "503 01", parsed.Vehicles[0].Number)
	assert.True(t, parsed.Vehicles[0].Ridden)
	assert.Equal(t, "503 02", parsed.Vehicles[1].Number)
	assert.Equal(t, "N1", parsed.Line)
}

func TestParseRideSpec_SyntaxErrors(t *testing.T) {
	for _, spec := range []string{"", "   ", "4012+", "+4012", "/1", "4012/", ":4012", "4012+!"} {
		_, err := ParseRideSpec(spec)
		assert.ErrorIs(t, err, ErrSpecSyntax, "spec %q", spec)
	}
}

func TestParseRideSpec_ColonTakesPrecedence(t *testing.T) {
	// GIVEN both a colon and a slash; the colon form wins and the slash stays
	// part of the vehicle token
	parsed, err := ParseRideSpec("26:71/72")

	require.NoError(t, err)
	assert.Equal(t, "26", parsed.Line)
	require.Len(t, parsed.Vehicles, 1)
	assert.Equal(t, "71/72", parsed.Vehicles[0].Number)
}

// =============================================================================
// EXPANSION
// =============================================================================

func testCatalog() StaticCatalog {
	coupling := []string{"4010", "4011", "4012"}
	return StaticCatalog{
		"wl": {
			"4010": {Number: "4010", TypeCode: "T1", FixedCoupling: coupling},
			"4011": {Number: "4011", TypeCode: "T1", FixedCoupling: coupling},
			"4012": {Number: "4012", TypeCode: "T1", FixedCoupling: coupling},
			"121":  {Number: "121", TypeCode: "E2"},
			"122":  {Number: "122", TypeCode: "E2"},
		},
	}
}

func TestExpand_NoCoupling(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}

	vehicles, err := r.Expand("wl", []SpecVehicle{
		{Number: "121", Ridden: true},
		{Number: "122"},
	})

	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	assert.Equal(t, RideVehicle{
		VehicleNumber: "121",
		VehicleType:   "E2",
		CouplingMode:  CouplingRidden,
	}, vehicles[0])
	assert.Equal(t, RideVehicle{
		VehicleNumber: "122",
		VehicleType:   "E2",
		SpecPosition:  1,
		CouplingMode:  CouplingExplicit,
	}, vehicles[1])
}

func TestExpand_FixedCouplingMiddleMember(t *testing.T) {
	// GIVEN a three-vehicle fixed coupling and a spec naming only the middle one
	r := &Resolver{Catalog: testCatalog()}

	// WHEN expanding
	vehicles, err := r.Expand("wl", []SpecVehicle{{Number: "4011", Ridden: true}})

	// THEN the explicit vehicle keeps position 0 and the remaining members are
	// appended in catalog order with continuing spec positions
	require.NoError(t, err)
	require.Len(t, vehicles, 3)

	assert.Equal(t, "4011", vehicles[0].VehicleNumber)
	assert.Equal(t, CouplingRidden, vehicles[0].CouplingMode)
	assert.Equal(t, 0, vehicles[0].SpecPosition)
	assert.Equal(t, 1, vehicles[0].FixedCouplingPosition)

	assert.Equal(t, "4010", vehicles[1].VehicleNumber)
	assert.Equal(t, CouplingFixed, vehicles[1].CouplingMode)
	assert.Equal(t, 1, vehicles[1].SpecPosition)
	assert.Equal(t, 0, vehicles[1].FixedCouplingPosition)

	assert.Equal(t, "4012", vehicles[2].VehicleNumber)
	assert.Equal(t, CouplingFixed, vehicles[2].CouplingMode)
	assert.Equal(t, 2, vehicles[2].SpecPosition)
	assert.Equal(t, 2, vehicles[2].FixedCouplingPosition)
}

func TestExpand_Deterministic(t *testing.T) {
	// Identical input and catalog state must yield identical output.
	r := &Resolver{Catalog: testCatalog()}
	in := []SpecVehicle{{Number: "4010", Ridden: true}}

	first, err := r.Expand("wl", in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Expand("wl", in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestExpand_FixedCouplingComboRejected(t *testing.T) {
	r := &Resolver{Catalog: testCatalog()}

	_, err := r.Expand("wl", []SpecVehicle{
		{Number: "4010", Ridden: true},
		{Number: "121"},
	})

	assert.ErrorIs(t, err, ErrFixedCouplingCombo)
	var combo *FixedCouplingComboError
	require.ErrorAs(t, err, &combo)
	assert.Equal(t, "4010", combo.VehicleNumber)
}

func TestExpand_FixedCouplingComboAllowed(t *testing.T) {
	r := &Resolver{Catalog: testCatalog(), AllowFixedCouplingCombos: true}

	vehicles, err := r.Expand("wl", []SpecVehicle{
		{Number: "4010", Ridden: true},
		{Number: "121"},
	})

	require.NoError(t, err)
	// 4010 + 121 explicit, then 4011 and 4012 implied by the coupling.
	require.Len(t, vehicles, 4)
	assert.Equal(t, "4011", vehicles[2].VehicleNumber)
	assert.Equal(t, CouplingFixed, vehicles[2].CouplingMode)
	assert.Equal(t, 2, vehicles[2].SpecPosition)
	assert.Equal(t, "4012", vehicles[3].VehicleNumber)
	assert.Equal(t, 3, vehicles[3].SpecPosition)
}

func TestExpand_UnknownVehiclePassesThrough(t *testing.T) {
	// An unknown vehicle is not an error; it simply carries no type and no
	// coupling.
	r := &Resolver{Catalog: testCatalog()}

	vehicles, err := r.Expand("wl", []SpecVehicle{{Number: "9999", Ridden: true}})

	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "9999", vehicles[0].VehicleNumber)
	assert.Equal(t, "", vehicles[0].VehicleType)
	assert.Equal(t, CouplingRidden, vehicles[0].CouplingMode)
}
