/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/ride-ledger/achievements"
	"github.com/warp/ride-ledger/analytics"
	"github.com/warp/ride-ledger/ledger"
)

// =============================================================================
// RIDES
// =============================================================================

// RideVehicleDTO represents one vehicle within a ride.
type RideVehicleDTO struct {
	Number                string `json:"number"`
	Type                  string `json:"type,omitempty"`
	SpecPosition          int    `json:"spec_position"`
	FixedCouplingPosition int    `json:"fixed_coupling_position"`
	CouplingMode          string `json:"coupling_mode"`
}

// RideDTO represents a ride in API responses.
type RideDTO struct {
	ID           int64            `json:"id"`
	Company      string           `json:"company"`
	Rider        string           `json:"rider"`
	Timestamp    string           `json:"timestamp"`
	Line         string           `json:"line,omitempty"`
	RegularPrice string           `json:"regular_price"`
	ActualPrice  string           `json:"actual_price"`
	Vehicles     []RideVehicleDTO `json:"vehicles"`
}

func toRideDTO(ride *ledger.Ride) RideDTO {
	dto := RideDTO{
		ID:           int64(ride.ID),
		Company:      ride.Company,
		Rider:        ride.Rider,
		Timestamp:    ride.Timestamp.Format(time.RFC3339),
		Line:         ride.Line,
		RegularPrice: ride.RegularPrice.String(),
		ActualPrice:  ride.ActualPrice.String(),
		Vehicles:     make([]RideVehicleDTO, len(ride.Vehicles)),
	}
	for i, v := range ride.Vehicles {
		dto.Vehicles[i] = RideVehicleDTO{
			Number:                v.VehicleNumber,
			Type:                  v.VehicleType,
			SpecPosition:          v.SpecPosition,
			FixedCouplingPosition: v.FixedCouplingPosition,
			CouplingMode:          string(v.CouplingMode),
		}
	}
	return dto
}

func toRideDTOs(rides []ledger.Ride) []RideDTO {
	dtos := make([]RideDTO, len(rides))
	for i := range rides {
		dtos[i] = toRideDTO(&rides[i])
	}
	return dtos
}

// RegisterRideRequest is the request to register a ride.
type RegisterRideRequest struct {
	Company string `json:"company"`

	// Spec is the vehicle specification:
	// VEHICLE[+VEHICLE[!]...][/LINE] or LINE:VEHICLE...
	Spec string `json:"spec"`

	// Rider registers the ride for someone else (admin only).
	Rider string `json:"rider,omitempty"`

	// Timestamp backdates the ride (admin only). Accepts RFC 3339 or
	// "YYYY-MM-DD hh:mm[:ss]" (interpreted as UTC when utc is set).
	Timestamp string `json:"timestamp,omitempty"`
	UTC       bool   `json:"utc,omitempty"`

	RegularPrice string `json:"regular_price,omitempty"`
	ActualPrice  string `json:"actual_price,omitempty"`

	// Sandbox computes and returns the would-be ride without persisting it.
	Sandbox bool `json:"sandbox,omitempty"`
}

// AmendRideRequest is a sparse amendment; absent fields stay untouched.
type AmendRideRequest struct {
	Company      *string `json:"company,omitempty"`
	Line         *string `json:"line,omitempty"` // "" clears the line
	Rider        *string `json:"rider,omitempty"`
	Timestamp    *string `json:"timestamp,omitempty"`
	UTC          bool    `json:"utc,omitempty"`
	Spec         *string `json:"spec,omitempty"`
	RegularPrice *string `json:"regular_price,omitempty"`
	ActualPrice  *string `json:"actual_price,omitempty"`
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

// AchievementDTO is one catalogue entry.
type AchievementDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UnlockDTO is one earned achievement.
type UnlockDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnlockedAt  string `json:"unlocked_at"`
}

// GrantRequest grants the manual achievement to a rider.
type GrantRequest struct {
	Rider string `json:"rider"`

	// GrantedAt defaults to now. RFC 3339.
	GrantedAt string `json:"granted_at,omitempty"`
}

func toAchievementDTOs(defs []achievements.Definition) []AchievementDTO {
	dtos := make([]AchievementDTO, len(defs))
	for i, def := range defs {
		dtos[i] = AchievementDTO{
			ID:          string(def.ID),
			Name:        def.Name,
			Description: def.Description,
		}
	}
	return dtos
}

// =============================================================================
// ANALYTICS
// =============================================================================

// BalanceDTO is one rider's takeover standing.
type BalanceDTO struct {
	Rider      string `json:"rider"`
	Balance    int    `json:"balance"`
	FirstRides int    `json:"first_rides"`
}

// MonopolyDTO is one fully-held fixed coupling.
type MonopolyDTO struct {
	Rider         string   `json:"rider"`
	Vehicles      []string `json:"vehicles"`
	EstablishedAt string   `json:"established_at"`
}

func toMonopolyDTO(m analytics.Monopoly) MonopolyDTO {
	vehicles := make([]string, len(m.Vehicles))
	for i, v := range m.Vehicles {
		vehicles[i] = v.Number
	}
	return MonopolyDTO{
		Rider:         m.Rider,
		Vehicles:      vehicles,
		EstablishedAt: m.EstablishedAt.Format(time.RFC3339),
	}
}

// VehicleSummaryDTO is one vehicle a rider has been in.
type VehicleSummaryDTO struct {
	Company       string `json:"company"`
	Number        string `json:"number"`
	Rides         int    `json:"rides"`
	FirstRiddenAt string `json:"first_ridden_at"`
	LastRiddenAt  string `json:"last_ridden_at"`
}

// ScoreDTO is one rider's divisibility score.
type ScoreDTO struct {
	Rider string `json:"rider"`
	Score int64  `json:"score"`
}

// CostDTO summarizes what a rider paid over a window.
type CostDTO struct {
	Rider        string `json:"rider"`
	Rides        int    `json:"rides"`
	RegularTotal string `json:"regular_total"`
	ActualTotal  string `json:"actual_total"`
	Saved        string `json:"saved"`
	From         string `json:"from,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
