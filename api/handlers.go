/*
handlers.go - HTTP API handlers for the ride ledger

PURPOSE:
  Exposes the ride ledger and its derived statistics via REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Rides:
    POST   /api/rides                 Register a ride
    GET    /api/rides                 Query rides (filters + pagination)
    GET    /api/rides/{id}            Get one ride
    PATCH  /api/rides/{id}            Amend a ride
    DELETE /api/rides/{id}            Delete a ride
    PATCH  /api/rides/latest          Amend the caller's most recent ride

  Achievements:
    GET    /api/achievements          Catalogue
    POST   /api/achievements/refresh  Re-evaluate over the full ledger
    GET    /api/riders/{rider}/achievements
    POST   /api/achievements/{id}/grants   Grant the manual achievement
    DELETE /api/achievements/{id}/grants/{rider}

  Analytics:
    GET    /api/analytics/balances    Takeover balances
    GET    /api/analytics/monopolies  Held fixed couplings
    GET    /api/analytics/scores      Divisibility scores
    GET    /api/riders/{rider}/vehicles   Distinct vehicles, natural order
    GET    /api/riders/{rider}/cost   Price totals (optional ?lookback=)

IDENTITY:
  The caller is identified by the X-Rider header; the surrounding deployment
  (chat bridge, reverse proxy) authenticates and sets it. Requests without
  the header are rejected.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Spec syntax, validation, empty change sets
  - 403: Admin-only fields, foreign rides, expired edit window
  - 404: Unknown ride
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/ride-ledger/achievements"
	"github.com/warp/ride-ledger/analytics"
	"github.com/warp/ride-ledger/ledger"
	"github.com/warp/ride-ledger/natsort"
	"github.com/warp/ride-ledger/transitcal"
)

// riderHeader carries the authenticated caller identity.
const riderHeader = "X-Rider"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger       *ledger.Ledger
	Achievements *achievements.Cache
	Engine       *achievements.Engine
	Grants       achievements.GrantStore
	Auth         ledger.Authorizer

	// CountFirstRides feeds through to the balance endpoints.
	CountFirstRides bool
}

// NewHandler creates a handler over the given collaborators.
func NewHandler(l *ledger.Ledger, cache *achievements.Cache, engine *achievements.Engine, grants achievements.GrantStore, auth ledger.Authorizer) *Handler {
	return &Handler{
		Ledger:          l,
		Achievements:    cache,
		Engine:          engine,
		Grants:          grants,
		Auth:            auth,
		CountFirstRides: true,
	}
}

func caller(r *http.Request) string {
	return r.Header.Get(riderHeader)
}

// =============================================================================
// RIDE HANDLERS
// =============================================================================

// RegisterRide registers a new ride for the caller.
func (h *Handler) RegisterRide(w http.ResponseWriter, r *http.Request) {
	who := caller(r)
	if who == "" {
		writeError(w, http.StatusUnauthorized, "Missing "+riderHeader+" header", nil)
		return
	}

	var req RegisterRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := ledger.RegisterInput{
		Caller:  who,
		Company: req.Company,
		Spec:    req.Spec,
		Rider:   req.Rider,
		Sandbox: req.Sandbox,
	}

	if req.Timestamp != "" {
		ts, err := parseAPITimestamp(req.Timestamp, req.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid timestamp", err)
			return
		}
		in.Timestamp = &ts
	}

	var err error
	if in.RegularPrice, err = parsePrice(req.RegularPrice); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid regular_price", err)
		return
	}
	if in.ActualPrice, err = parsePrice(req.ActualPrice); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid actual_price", err)
		return
	}

	ride, err := h.Ledger.Register(r.Context(), in)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	status := http.StatusCreated
	if req.Sandbox {
		status = http.StatusOK
	}
	writeJSON(w, status, toRideDTO(ride))
}

// GetRide returns one ride by id.
func (h *Handler) GetRide(w http.ResponseWriter, r *http.Request) {
	id, err := parseRideID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ride id", err)
		return
	}

	ride, err := h.Ledger.Get(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRideDTO(ride))
}

// QueryRides returns rides matching the query-string filters.
func (h *Handler) QueryRides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.RideFilter{
		Rider:   q.Get("rider"),
		Company: q.Get("company"),
		Line:    q.Get("line"),
		Vehicle: q.Get("vehicle"),
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "Invalid offset", err)
			return
		}
		filter.Offset = offset
	}
	if v := q.Get("lookback"); v != "" {
		lb, err := transitcal.ParseLookback(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid lookback", err)
			return
		}
		from := lb.Start(time.Now())
		filter.From = &from
	}

	rides, err := h.Ledger.Query(r.Context(), filter)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRideDTOs(rides))
}

// AmendRide applies a sparse amendment to one ride.
func (h *Handler) AmendRide(w http.ResponseWriter, r *http.Request) {
	id, err := parseRideID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ride id", err)
		return
	}
	h.amend(w, r, ledger.Selector{RideID: &id})
}

// AmendLatestRide amends the caller's (or ?rider=) most recent ride.
func (h *Handler) AmendLatestRide(w http.ResponseWriter, r *http.Request) {
	h.amend(w, r, ledger.Selector{Rider: r.URL.Query().Get("rider")})
}

func (h *Handler) amend(w http.ResponseWriter, r *http.Request, sel ledger.Selector) {
	who := caller(r)
	if who == "" {
		writeError(w, http.StatusUnauthorized, "Missing "+riderHeader+" header", nil)
		return
	}

	var req AmendRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ch := ledger.Changes{
		Company:     req.Company,
		Line:        req.Line,
		Rider:       req.Rider,
		VehicleSpec: req.Spec,
	}
	if req.Timestamp != nil {
		ts, err := parseAPITimestamp(*req.Timestamp, req.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid timestamp", err)
			return
		}
		ch.Timestamp = &ts
	}
	if req.RegularPrice != nil {
		price, err := parsePrice(*req.RegularPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid regular_price", err)
			return
		}
		ch.RegularPrice = &price
	}
	if req.ActualPrice != nil {
		price, err := parsePrice(*req.ActualPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid actual_price", err)
			return
		}
		ch.ActualPrice = &price
	}

	ride, err := h.Ledger.Amend(r.Context(), who, sel, ch)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRideDTO(ride))
}

// DeleteRide deletes one ride.
func (h *Handler) DeleteRide(w http.ResponseWriter, r *http.Request) {
	who := caller(r)
	if who == "" {
		writeError(w, http.StatusUnauthorized, "Missing "+riderHeader+" header", nil)
		return
	}

	id, err := parseRideID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ride id", err)
		return
	}

	if _, err := h.Ledger.Amend(r.Context(), who, ledger.Selector{RideID: &id}, ledger.Changes{Delete: true}); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ACHIEVEMENT HANDLERS
// =============================================================================

// ListAchievements returns the achievement catalogue.
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toAchievementDTOs(h.Engine.Definitions()))
}

// GetRiderAchievements returns a rider's unlocks from the current snapshot.
func (h *Handler) GetRiderAchievements(w http.ResponseWriter, r *http.Request) {
	rider := chi.URLParam(r, "rider")

	unlocks := h.Achievements.Get().ForRider(rider)
	dtos := make([]UnlockDTO, 0, len(unlocks))
	for _, u := range unlocks {
		dto := UnlockDTO{
			ID:         string(u.ID),
			UnlockedAt: u.UnlockedAt.Format(time.RFC3339),
		}
		if def, ok := h.Engine.Definition(u.ID); ok {
			dto.Name = def.Name
			dto.Description = def.Description
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RefreshAchievements re-evaluates the catalogue over the full ledger and
// returns the newly earned unlocks.
func (h *Handler) RefreshAchievements(w http.ResponseWriter, r *http.Request) {
	newUnlocks, err := h.Achievements.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh achievements", err)
		return
	}

	dtos := make([]UnlockDTO, 0, len(newUnlocks))
	for _, u := range newUnlocks {
		dto := UnlockDTO{
			ID:         string(u.ID),
			UnlockedAt: u.UnlockedAt.Format(time.RFC3339),
		}
		if def, ok := h.Engine.Definition(u.ID); ok {
			dto.Name = def.Name
			dto.Description = def.Description
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GrantAchievement manually grants an overridable achievement (admin only).
func (h *Handler) GrantAchievement(w http.ResponseWriter, r *http.Request) {
	who := caller(r)
	if who == "" || !h.Auth.IsAdmin(who) {
		writeError(w, http.StatusForbidden, "Admin privilege required", nil)
		return
	}

	id := achievements.ID(chi.URLParam(r, "id"))
	if _, ok := h.Engine.Definition(id); !ok {
		writeError(w, http.StatusNotFound, "Unknown achievement", nil)
		return
	}

	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Rider == "" {
		writeError(w, http.StatusBadRequest, "rider is required", nil)
		return
	}

	at := time.Now()
	if req.GrantedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.GrantedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid granted_at", err)
			return
		}
		at = parsed
	}

	if err := h.Grants.Grant(r.Context(), id, req.Rider, at); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record grant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeAchievement removes a manual grant (admin only).
func (h *Handler) RevokeAchievement(w http.ResponseWriter, r *http.Request) {
	who := caller(r)
	if who == "" || !h.Auth.IsAdmin(who) {
		writeError(w, http.StatusForbidden, "Admin privilege required", nil)
		return
	}

	id := achievements.ID(chi.URLParam(r, "id"))
	rider := chi.URLParam(r, "rider")
	if err := h.Grants.Revoke(r.Context(), id, rider); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to revoke grant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ANALYTICS HANDLERS
// =============================================================================

// replay loads the replay feed for an analytics request, honoring the
// optional company and lookback query parameters.
func (h *Handler) replay(r *http.Request) ([]ledger.Ride, error) {
	rides, err := h.Ledger.History(r.Context(), r.URL.Query().Get("company"), "")
	if err != nil {
		return nil, err
	}
	if v := r.URL.Query().Get("lookback"); v != "" {
		lb, err := transitcal.ParseLookback(v)
		if err != nil {
			return nil, errBadLookback{err}
		}
		from := lb.Start(time.Now())
		kept := rides[:0]
		for _, ride := range rides {
			if ride.Timestamp.After(from) {
				kept = append(kept, ride)
			}
		}
		rides = kept
	}
	return rides, nil
}

type errBadLookback struct{ err error }

func (e errBadLookback) Error() string { return e.err.Error() }

func writeReplayError(w http.ResponseWriter, err error) {
	if bad, ok := err.(errBadLookback); ok {
		writeError(w, http.StatusBadRequest, "Invalid lookback", bad.err)
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to load rides", err)
}

// GetBalances returns every rider's takeover balance, highest first.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	rides, err := h.replay(r)
	if err != nil {
		writeReplayError(w, err)
		return
	}

	res := analytics.Ownership(rides, analytics.OwnershipOptions{CountFirstRides: h.CountFirstRides})
	dtos := make([]BalanceDTO, 0, len(res.Balances))
	for rider, balance := range res.Balances {
		dtos = append(dtos, BalanceDTO{
			Rider:      rider,
			Balance:    balance,
			FirstRides: res.FirstRides[rider],
		})
	}
	sort.Slice(dtos, func(i, j int) bool {
		if dtos[i].Balance != dtos[j].Balance {
			return dtos[i].Balance > dtos[j].Balance
		}
		return dtos[i].Rider < dtos[j].Rider
	})
	writeJSON(w, http.StatusOK, dtos)
}

// GetMonopolies returns the currently held fixed couplings.
func (h *Handler) GetMonopolies(w http.ResponseWriter, r *http.Request) {
	rides, err := h.replay(r)
	if err != nil {
		writeReplayError(w, err)
		return
	}

	monopolies := analytics.Monopolies(rides)
	dtos := make([]MonopolyDTO, len(monopolies))
	for i, m := range monopolies {
		dtos[i] = toMonopolyDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetScores returns every rider's divisibility score, highest first.
func (h *Handler) GetScores(w http.ResponseWriter, r *http.Request) {
	rides, err := h.replay(r)
	if err != nil {
		writeReplayError(w, err)
		return
	}

	scores := analytics.DivisibilityScores(rides)
	dtos := make([]ScoreDTO, 0, len(scores))
	for rider, score := range scores {
		dtos = append(dtos, ScoreDTO{Rider: rider, Score: score})
	}
	sort.Slice(dtos, func(i, j int) bool {
		if dtos[i].Score != dtos[j].Score {
			return dtos[i].Score > dtos[j].Score
		}
		return dtos[i].Rider < dtos[j].Rider
	})
	writeJSON(w, http.StatusOK, dtos)
}

// GetRiderVehicles lists every vehicle the rider has been in, in natural
// vehicle-number order.
func (h *Handler) GetRiderVehicles(w http.ResponseWriter, r *http.Request) {
	rider := chi.URLParam(r, "rider")

	rides, err := h.Ledger.History(r.Context(), r.URL.Query().Get("company"), rider)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load rides", err)
		return
	}

	summaries := make(map[analytics.VehicleKey]*VehicleSummaryDTO)
	for i := range rides {
		ride := &rides[i]
		for _, v := range ride.Vehicles {
			key := analytics.VehicleKey{Company: ride.Company, Number: v.VehicleNumber}
			s, ok := summaries[key]
			if !ok {
				s = &VehicleSummaryDTO{
					Company:       key.Company,
					Number:        key.Number,
					FirstRiddenAt: ride.Timestamp.Format(time.RFC3339),
				}
				summaries[key] = s
			}
			s.Rides++
			s.LastRiddenAt = ride.Timestamp.Format(time.RFC3339)
		}
	}

	dtos := make([]VehicleSummaryDTO, 0, len(summaries))
	for _, s := range summaries {
		dtos = append(dtos, *s)
	}
	sort.Slice(dtos, func(i, j int) bool {
		if dtos[i].Company != dtos[j].Company {
			return dtos[i].Company < dtos[j].Company
		}
		return natsort.Less(dtos[i].Number, dtos[j].Number)
	})
	writeJSON(w, http.StatusOK, dtos)
}

// GetRiderCost sums what a rider paid, optionally over a lookback window.
func (h *Handler) GetRiderCost(w http.ResponseWriter, r *http.Request) {
	rider := chi.URLParam(r, "rider")

	filter := ledger.RideFilter{Rider: rider}
	dto := CostDTO{Rider: rider}
	if v := r.URL.Query().Get("lookback"); v != "" {
		lb, err := transitcal.ParseLookback(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid lookback", err)
			return
		}
		from := lb.Start(time.Now())
		filter.From = &from
		dto.From = from.Format(time.RFC3339)
	}

	rides, err := h.Ledger.Query(r.Context(), filter)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	regular := decimal.Zero
	actual := decimal.Zero
	for _, ride := range rides {
		regular = regular.Add(ride.RegularPrice)
		actual = actual.Add(ride.ActualPrice)
	}

	dto.Rides = len(rides)
	dto.RegularTotal = regular.String()
	dto.ActualTotal = actual.String()
	dto.Saved = regular.Sub(actual).String()
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseRideID(raw string) (ledger.RideID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return ledger.RideID(id), nil
}

// parseAPITimestamp accepts RFC 3339 and the human "YYYY-MM-DD hh:mm[:ss]"
// input format.
func parseAPITimestamp(s string, utc bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return transitcal.ParseTimestamp(s, utc)
}

func parsePrice(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Ride not found", err)
	case ledger.IsUnauthorized(err):
		writeError(w, http.StatusForbidden, "Not allowed", err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
