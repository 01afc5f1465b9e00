package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ride-ledger/achievements"
	"github.com/warp/ride-ledger/ledger"
	"github.com/warp/ride-ledger/ledger/store"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	memory := store.NewTxMemory()
	l := ledger.New(memory, ledger.EmptyCatalog, ledger.AdminList{"admin"},
		ledger.WithEditWindow(24*time.Hour))

	grants := achievements.NewMemoryGrants()
	engine := achievements.NewEngine(achievements.Catalog(), grants,
		achievements.EngineOptions{CountFirstRides: true})
	cache := achievements.NewCache(engine, l)

	h := NewHandler(l, cache, engine, grants, ledger.AdminList{"admin"})
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, rider string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if rider != "" {
		req.Header.Set(riderHeader, rider)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// =============================================================================
// RIDES
// =============================================================================

func TestRegisterRide(t *testing.T) {
	srv := newTestServer(t)

	// WHEN alice registers a two-vehicle ride with a line
	resp := doJSON(t, srv, http.MethodPost, "/api/rides", "alice",
		RegisterRideRequest{Company: "wl", Spec: "4012+4013!/1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ride := decode[RideDTO](t, resp)

	// THEN the ride carries both vehicles in spec order with the ridden marker
	assert.NotZero(t, ride.ID)
	assert.Equal(t, "alice", ride.Rider)
	assert.Equal(t, "1", ride.Line)
	require.Len(t, ride.Vehicles, 2)
	assert.Equal(t, "4012", ride.Vehicles[0].Number)
	assert.Equal(t, "E", ride.Vehicles[0].CouplingMode)
	assert.Equal(t, "4013", ride.Vehicles[1].Number)
	assert.Equal(t, "R", ride.Vehicles[1].CouplingMode)
}

func TestRegisterRide_RequiresIdentity(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/rides", "",
		RegisterRideRequest{Company: "wl", Spec: "4012"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterRide_BadSpec(t *testing.T) {
	srv := newTestServer(t)

	// Two vehicles, neither marked as ridden.
	resp := doJSON(t, srv, http.MethodPost, "/api/rides", "alice",
		RegisterRideRequest{Company: "wl", Spec: "4012+4013"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errResp := decode[ErrorResponse](t, resp)
	assert.NotEmpty(t, errResp.Details)
}

func TestRegisterRide_Sandbox(t *testing.T) {
	srv := newTestServer(t)

	// GIVEN a sandboxed registration
	resp := doJSON(t, srv, http.MethodPost, "/api/rides", "alice",
		RegisterRideRequest{Company: "wl", Spec: "4012", Sandbox: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ride := decode[RideDTO](t, resp)
	assert.Zero(t, ride.ID)

	// THEN nothing was persisted
	resp = doJSON(t, srv, http.MethodGet, "/api/rides?rider=alice", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]RideDTO](t, resp))
}

func TestRegisterRide_TimestampOverrideIsAdminOnly(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/rides", "alice",
		RegisterRideRequest{Company: "wl", Spec: "4012", Timestamp: "2024-06-01 12:00", UTC: true})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, srv, http.MethodPost, "/api/rides", "admin",
		RegisterRideRequest{Company: "wl", Spec: "4012", Rider: "alice", Timestamp: "2024-06-01 12:00", UTC: true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ride := decode[RideDTO](t, resp)
	assert.Equal(t, "alice", ride.Rider)
	assert.Equal(t, "2024-06-01T12:00:00Z", ride.Timestamp)
}

func TestQueryRides_Filters(t *testing.T) {
	srv := newTestServer(t)

	for _, r := range []RegisterRideRequest{
		{Company: "wl", Spec: "4012/1"},
		{Company: "wl", Spec: "121/2"},
		{Company: "graz", Spec: "603/7"},
	} {
		resp := doJSON(t, srv, http.MethodPost, "/api/rides", "alice", r)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON(t, srv, http.MethodGet, "/api/rides?company=wl", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]RideDTO](t, resp), 2)

	resp = doJSON(t, srv, http.MethodGet, "/api/rides?vehicle=603", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rides := decode[[]RideDTO](t, resp)
	require.Len(t, rides, 1)
	assert.Equal(t, "7", rides[0].Line)
}

func TestAmendRide(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/rides", "alice",
		RegisterRideRequest{Company: "wl", Spec: "4012/1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ride := decode[RideDTO](t, resp)

	// WHEN alice fixes the line on her most recent ride
	line := "2"
	resp = doJSON(t, srv, http.MethodPatch, "/api/rides/latest", "alice",
		AmendRideRequest{Line: &line})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	amended := decode[RideDTO](t, resp)
	assert.Equal(t, ride.ID, amended.ID)
	assert.Equal(t, "2", amended.Line)

	// AND bob cannot touch it
	resp = doJSON(t, srv, http.MethodPatch, "/api/rides/latest?rider=alice", "bob",
		AmendRideRequest{Line: &line})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAmendRide_EmptyChangeSet(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/rides", "alice",
		RegisterRideRequest{Company: "wl", Spec: "4012"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, srv, http.MethodPatch, "/api/rides/latest", "alice", AmendRideRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteRide(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/api/rides", "alice",
		RegisterRideRequest{Company: "wl", Spec: "4012"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ride := decode[RideDTO](t, resp)
	path := "/api/rides/" + strconv.FormatInt(ride.ID, 10)

	resp = doJSON(t, srv, http.MethodDelete, path, "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, srv, http.MethodGet, path, "alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

func TestAchievementFlow(t *testing.T) {
	srv := newTestServer(t)

	// Catalogue is served without identity.
	resp := doJSON(t, srv, http.MethodGet, "/api/achievements", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	catalogue := decode[[]AchievementDTO](t, resp)
	assert.NotEmpty(t, catalogue)

	resp = doJSON(t, srv, http.MethodPost, "/api/rides", "alice",
		RegisterRideRequest{Company: "wl", Spec: "1666/6"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// WHEN the snapshot is refreshed
	resp = doJSON(t, srv, http.MethodPost, "/api/achievements/refresh", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newUnlocks := decode[[]UnlockDTO](t, resp)
	assert.NotEmpty(t, newUnlocks)

	// THEN alice's unlocks include first-ride and beastly, with names filled in
	resp = doJSON(t, srv, http.MethodGet, "/api/riders/alice/achievements", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	unlocks := decode[[]UnlockDTO](t, resp)

	byID := make(map[string]UnlockDTO)
	for _, u := range unlocks {
		byID[u.ID] = u
	}
	assert.Contains(t, byID, "first-ride")
	require.Contains(t, byID, "beastly")
	assert.NotEmpty(t, byID["beastly"].Name)
}

func TestManualGrant(t *testing.T) {
	srv := newTestServer(t)

	// Non-admins cannot grant.
	resp := doJSON(t, srv, http.MethodPost, "/api/achievements/it-must-be-thursday/grants", "alice",
		GrantRequest{Rider: "alice"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, srv, http.MethodPost, "/api/achievements/it-must-be-thursday/grants", "admin",
		GrantRequest{Rider: "bob", GrantedAt: "2024-06-06T12:00:00Z"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, srv, http.MethodPost, "/api/achievements/refresh", "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, srv, http.MethodGet, "/api/riders/bob/achievements", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	unlocks := decode[[]UnlockDTO](t, resp)
	require.Len(t, unlocks, 1)
	assert.Equal(t, "it-must-be-thursday", unlocks[0].ID)
	assert.Equal(t, "2024-06-06T12:00:00Z", unlocks[0].UnlockedAt)
}

// =============================================================================
// ANALYTICS
// =============================================================================

func TestBalancesAndScores(t *testing.T) {
	srv := newTestServer(t)

	// GIVEN alice rides first and bob takes the vehicle over
	resp := doJSON(t, srv, http.MethodPost, "/api/rides", "alice",
		RegisterRideRequest{Company: "wl", Spec: "426/71"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, srv, http.MethodPost, "/api/rides", "bob",
		RegisterRideRequest{Company: "wl", Spec: "426/71"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, srv, http.MethodGet, "/api/analytics/balances", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balances := decode[[]BalanceDTO](t, resp)
	require.Len(t, balances, 2)
	// Sorted highest first: bob holds the vehicle, alice lost it but keeps
	// her first-ride credit.
	assert.Equal(t, "bob", balances[0].Rider)
	assert.Equal(t, 1, balances[0].Balance)
	assert.Equal(t, "alice", balances[1].Rider)
	assert.Equal(t, 0, balances[1].Balance)
	assert.Equal(t, 1, balances[1].FirstRides)

	// 426 % 71 == 0, so both riders score 71.
	resp = doJSON(t, srv, http.MethodGet, "/api/analytics/scores", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	scores := decode[[]ScoreDTO](t, resp)
	require.Len(t, scores, 2)
	assert.Equal(t, int64(71), scores[0].Score)
	assert.Equal(t, int64(71), scores[1].Score)
}

func TestRiderVehicles_NaturalOrder(t *testing.T) {
	srv := newTestServer(t)

	for _, spec := range []string{"70", "9", "121", "9"} {
		resp := doJSON(t, srv, http.MethodPost, "/api/rides", "alice",
			RegisterRideRequest{Company: "wl", Spec: spec})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON(t, srv, http.MethodGet, "/api/riders/alice/vehicles", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	vehicles := decode[[]VehicleSummaryDTO](t, resp)
	require.Len(t, vehicles, 3)

	// Numeric order, not string order ("70" would sort before "9" as strings).
	assert.Equal(t, "9", vehicles[0].Number)
	assert.Equal(t, "70", vehicles[1].Number)
	assert.Equal(t, "121", vehicles[2].Number)
	assert.Equal(t, 2, vehicles[0].Rides)
}

func TestRiderCost(t *testing.T) {
	srv := newTestServer(t)

	for _, r := range []RegisterRideRequest{
		{Company: "wl", Spec: "4012", RegularPrice: "2.40", ActualPrice: "0"},
		{Company: "wl", Spec: "121", RegularPrice: "2.40", ActualPrice: "1.20"},
	} {
		resp := doJSON(t, srv, http.MethodPost, "/api/rides", "alice", r)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON(t, srv, http.MethodGet, "/api/riders/alice/cost?lookback=last-week", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cost := decode[CostDTO](t, resp)
	assert.Equal(t, 2, cost.Rides)
	assert.Equal(t, "4.80", cost.RegularTotal)
	assert.Equal(t, "1.20", cost.ActualTotal)
	assert.Equal(t, "3.60", cost.Saved)
	assert.NotEmpty(t, cost.From)

	resp = doJSON(t, srv, http.MethodGet, "/api/riders/alice/cost?lookback=fortnight", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
