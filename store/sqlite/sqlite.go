/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  ledger.RideStore:        Ride persistence
  ledger.TxRideStore:      Transactional amendment support
  achievements.GrantStore: Manual achievement grants

KEY TABLES:
  rides:              One row per ride (rider, company, line, prices)
  ride_vehicles:      One row per vehicle within a ride
  achievement_grants: Manually granted achievements, keyed by (id, rider)

A ride and its vehicles are always written together: InsertRide, UpdateRide,
and DeleteRide each run in an implicit or explicit transaction, and
ride_vehicles cascades on delete.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  readers don't block, one writer at a time, better crash recovery.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/ride-ledger/achievements"
	"github.com/warp/ride-ledger/ledger"
)

// timeFormat stores timestamps as UTC in a fixed-width layout so the TEXT
// column sorts lexically in chronological order. ORDER BY and range filters
// compare the raw strings, and RFC 3339 would not survive that: a whole
// second ("...:00Z") sorts after a fraction of it ("...:00.5Z"), and local
// offsets drift across DST. Zone-less layouts parse back as UTC.
const timeFormat = "2006-01-02 15:04:05.000000000"

// Store implements the ride and grant storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company TEXT NOT NULL,
		rider TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		line TEXT NOT NULL DEFAULT '',
		regular_price TEXT NOT NULL DEFAULT '0',
		actual_price TEXT NOT NULL DEFAULT '0'
	);

	-- The replay feed orders by (timestamp, id); the rider's latest ride
	-- needs the reverse scan of the same index.
	CREATE INDEX IF NOT EXISTS idx_rides_timestamp
		ON rides(timestamp, id);
	CREATE INDEX IF NOT EXISTS idx_rides_rider_timestamp
		ON rides(rider, timestamp DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_rides_company
		ON rides(company);

	CREATE TABLE IF NOT EXISTS ride_vehicles (
		ride_id INTEGER NOT NULL REFERENCES rides(id) ON DELETE CASCADE,
		vehicle_number TEXT NOT NULL,
		vehicle_type TEXT NOT NULL DEFAULT '',
		spec_position INTEGER NOT NULL,
		fixed_coupling_position INTEGER NOT NULL DEFAULT 0,
		coupling_mode TEXT NOT NULL CHECK (coupling_mode IN ('R', 'E', 'F')),
		PRIMARY KEY (ride_id, vehicle_number)
	);

	CREATE INDEX IF NOT EXISTS idx_ride_vehicles_number
		ON ride_vehicles(vehicle_number);

	CREATE TABLE IF NOT EXISTS achievement_grants (
		achievement_id TEXT NOT NULL,
		rider TEXT NOT NULL,
		granted_at TEXT NOT NULL,
		PRIMARY KEY (achievement_id, rider)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the subset of *sql.DB and *sql.Tx the queries need, so the same
// code serves both the ambient connection and an open transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// RIDE STORE (ledger.RideStore interface)
// =============================================================================

func (s *Store) InsertRide(ctx context.Context, ride *ledger.Ride) (ledger.RideID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	id, err := insertRide(ctx, sqlTx, ride)
	if err != nil {
		return 0, err
	}
	return id, sqlTx.Commit()
}

func insertRide(ctx context.Context, q dbtx, ride *ledger.Ride) (ledger.RideID, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO rides (company, rider, timestamp, line, regular_price, actual_price)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ride.Company,
		ride.Rider,
		ride.Timestamp.UTC().Format(timeFormat),
		ride.Line,
		ride.RegularPrice.String(),
		ride.ActualPrice.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ride: %w", err)
	}

	rawID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted ride id: %w", err)
	}
	id := ledger.RideID(rawID)

	if err := insertVehicles(ctx, q, id, ride.Vehicles); err != nil {
		return 0, err
	}
	return id, nil
}

func insertVehicles(ctx context.Context, q dbtx, id ledger.RideID, vehicles []ledger.RideVehicle) error {
	for _, v := range vehicles {
		_, err := q.ExecContext(ctx, `
			INSERT INTO ride_vehicles
			(ride_id, vehicle_number, vehicle_type, spec_position, fixed_coupling_position, coupling_mode)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, v.VehicleNumber, v.VehicleType, v.SpecPosition, v.FixedCouplingPosition, string(v.CouplingMode),
		)
		if err != nil {
			return fmt.Errorf("failed to insert ride vehicle %s: %w", v.VehicleNumber, err)
		}
	}
	return nil
}

func (s *Store) GetRide(ctx context.Context, id ledger.RideID) (*ledger.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRide(ctx, s.db, id)
}

func getRide(ctx context.Context, q dbtx, id ledger.RideID) (*ledger.Ride, error) {
	rides, err := queryRides(ctx, q, `
		SELECT id, company, rider, timestamp, line, regular_price, actual_price
		FROM rides WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rides) == 0 {
		return nil, ledger.ErrRideNotFound
	}
	return &rides[0], nil
}

func (s *Store) LatestRide(ctx context.Context, rider string) (*ledger.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestRide(ctx, s.db, rider)
}

func latestRide(ctx context.Context, q dbtx, rider string) (*ledger.Ride, error) {
	rides, err := queryRides(ctx, q, `
		SELECT id, company, rider, timestamp, line, regular_price, actual_price
		FROM rides WHERE rider = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1`, rider)
	if err != nil {
		return nil, err
	}
	if len(rides) == 0 {
		return nil, ledger.ErrRideNotFound
	}
	return &rides[0], nil
}

func (s *Store) UpdateRide(ctx context.Context, ride *ledger.Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := updateRide(ctx, sqlTx, ride); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func updateRide(ctx context.Context, q dbtx, ride *ledger.Ride) error {
	res, err := q.ExecContext(ctx, `
		UPDATE rides
		SET company = ?, rider = ?, timestamp = ?, line = ?, regular_price = ?, actual_price = ?
		WHERE id = ?`,
		ride.Company,
		ride.Rider,
		ride.Timestamp.UTC().Format(timeFormat),
		ride.Line,
		ride.RegularPrice.String(),
		ride.ActualPrice.String(),
		ride.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ride %d: %w", ride.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrRideNotFound
	}

	// Vehicle rows are replaced wholesale; sparse vehicle edits do not exist
	// at this layer.
	if _, err := q.ExecContext(ctx, `DELETE FROM ride_vehicles WHERE ride_id = ?`, ride.ID); err != nil {
		return fmt.Errorf("failed to clear ride vehicles: %w", err)
	}
	return insertVehicles(ctx, q, ride.ID, ride.Vehicles)
}

func (s *Store) DeleteRide(ctx context.Context, id ledger.RideID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteRide(ctx, s.db, id)
}

func deleteRide(ctx context.Context, q dbtx, id ledger.RideID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM rides WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ride %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrRideNotFound
	}
	return nil
}

func (s *Store) QueryRides(ctx context.Context, filter ledger.RideFilter) ([]ledger.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryRidesFiltered(ctx, s.db, filter)
}

func queryRidesFiltered(ctx context.Context, q dbtx, filter ledger.RideFilter) ([]ledger.Ride, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, company, rider, timestamp, line, regular_price, actual_price
		FROM rides WHERE 1=1`)
	var args []any

	if filter.Rider != "" {
		query.WriteString(" AND rider = ?")
		args = append(args, filter.Rider)
	}
	if filter.Company != "" {
		query.WriteString(" AND company = ?")
		args = append(args, filter.Company)
	}
	if filter.Line != "" {
		query.WriteString(" AND line = ?")
		args = append(args, filter.Line)
	}
	if filter.Vehicle != "" {
		query.WriteString(" AND EXISTS (SELECT 1 FROM ride_vehicles rv WHERE rv.ride_id = rides.id AND rv.vehicle_number = ?)")
		args = append(args, filter.Vehicle)
	}
	if filter.From != nil {
		query.WriteString(" AND timestamp >= ?")
		args = append(args, filter.From.UTC().Format(timeFormat))
	}
	if filter.To != nil {
		query.WriteString(" AND timestamp <= ?")
		args = append(args, filter.To.UTC().Format(timeFormat))
	}

	query.WriteString(" ORDER BY id ASC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite requires a LIMIT before OFFSET; -1 means unlimited.
		query.WriteString(" LIMIT -1")
	}
	if filter.Offset > 0 {
		query.WriteString(" OFFSET ?")
		args = append(args, filter.Offset)
	}

	return queryRides(ctx, q, query.String(), args...)
}

func (s *Store) RidesByTime(ctx context.Context, company, rider string) ([]ledger.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ridesByTime(ctx, s.db, company, rider)
}

func ridesByTime(ctx context.Context, q dbtx, company, rider string) ([]ledger.Ride, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, company, rider, timestamp, line, regular_price, actual_price
		FROM rides WHERE 1=1`)
	var args []any

	if company != "" {
		query.WriteString(" AND company = ?")
		args = append(args, company)
	}
	if rider != "" {
		query.WriteString(" AND rider = ?")
		args = append(args, rider)
	}
	query.WriteString(" ORDER BY timestamp ASC, id ASC")

	return queryRides(ctx, q, query.String(), args...)
}

func queryRides(ctx context.Context, q dbtx, query string, args ...any) ([]ledger.Ride, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rides: %w", err)
	}
	defer rows.Close()

	var rides []ledger.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rides, attachVehicles(ctx, q, rides)
}

func scanRide(rows *sql.Rows) (ledger.Ride, error) {
	var (
		ride         ledger.Ride
		timestamp    string
		regularPrice string
		actualPrice  string
	)

	err := rows.Scan(&ride.ID, &ride.Company, &ride.Rider, &timestamp, &ride.Line, &regularPrice, &actualPrice)
	if err != nil {
		return ride, fmt.Errorf("failed to scan ride: %w", err)
	}

	ride.Timestamp, err = time.Parse(timeFormat, timestamp)
	if err != nil {
		return ride, fmt.Errorf("failed to parse ride timestamp: %w", err)
	}
	ride.RegularPrice, err = decimal.NewFromString(regularPrice)
	if err != nil {
		return ride, fmt.Errorf("failed to parse regular price: %w", err)
	}
	ride.ActualPrice, err = decimal.NewFromString(actualPrice)
	if err != nil {
		return ride, fmt.Errorf("failed to parse actual price: %w", err)
	}
	return ride, nil
}

// attachVehicles loads the vehicle rows of all given rides in one query.
func attachVehicles(ctx context.Context, q dbtx, rides []ledger.Ride) error {
	if len(rides) == 0 {
		return nil
	}

	byID := make(map[ledger.RideID]*ledger.Ride, len(rides))
	placeholders := make([]string, len(rides))
	args := make([]any, len(rides))
	for i := range rides {
		byID[rides[i].ID] = &rides[i]
		placeholders[i] = "?"
		args[i] = rides[i].ID
	}

	query := fmt.Sprintf(`
		SELECT ride_id, vehicle_number, vehicle_type, spec_position, fixed_coupling_position, coupling_mode
		FROM ride_vehicles
		WHERE ride_id IN (%s)
		ORDER BY ride_id, spec_position`, strings.Join(placeholders, ","))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query ride vehicles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rideID ledger.RideID
			v      ledger.RideVehicle
			mode   string
		)
		if err := rows.Scan(&rideID, &v.VehicleNumber, &v.VehicleType, &v.SpecPosition, &v.FixedCouplingPosition, &mode); err != nil {
			return fmt.Errorf("failed to scan ride vehicle: %w", err)
		}
		v.CouplingMode = ledger.CouplingMode(mode)
		if ride, ok := byID[rideID]; ok {
			ride.Vehicles = append(ride.Vehicles, v)
		}
	}
	return rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxRideStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.RideStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes store calls through an open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) InsertRide(ctx context.Context, ride *ledger.Ride) (ledger.RideID, error) {
	return insertRide(ctx, ts.tx, ride)
}

func (ts *txStore) GetRide(ctx context.Context, id ledger.RideID) (*ledger.Ride, error) {
	return getRide(ctx, ts.tx, id)
}

func (ts *txStore) LatestRide(ctx context.Context, rider string) (*ledger.Ride, error) {
	return latestRide(ctx, ts.tx, rider)
}

func (ts *txStore) UpdateRide(ctx context.Context, ride *ledger.Ride) error {
	return updateRide(ctx, ts.tx, ride)
}

func (ts *txStore) DeleteRide(ctx context.Context, id ledger.RideID) error {
	return deleteRide(ctx, ts.tx, id)
}

func (ts *txStore) QueryRides(ctx context.Context, filter ledger.RideFilter) ([]ledger.Ride, error) {
	return queryRidesFiltered(ctx, ts.tx, filter)
}

func (ts *txStore) RidesByTime(ctx context.Context, company, rider string) ([]ledger.Ride, error) {
	return ridesByTime(ctx, ts.tx, company, rider)
}

// =============================================================================
// ACHIEVEMENT GRANT STORE (achievements.GrantStore interface)
// =============================================================================

func (s *Store) Overrides(ctx context.Context, id achievements.ID) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT rider, granted_at FROM achievement_grants WHERE achievement_id = ?`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query achievement grants: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var rider, grantedAt string
		if err := rows.Scan(&rider, &grantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement grant: %w", err)
		}
		at, err := time.Parse(timeFormat, grantedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse grant time: %w", err)
		}
		out[rider] = at
	}
	return out, rows.Err()
}

func (s *Store) Grant(ctx context.Context, id achievements.ID, rider string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO achievement_grants (achievement_id, rider, granted_at)
		VALUES (?, ?, ?)
		ON CONFLICT(achievement_id, rider) DO UPDATE SET
			granted_at = excluded.granted_at`,
		string(id), rider, at.UTC().Format(timeFormat),
	)
	return err
}

func (s *Store) Revoke(ctx context.Context, id achievements.ID, rider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM achievement_grants WHERE achievement_id = ? AND rider = ?`,
		string(id), rider)
	return err
}
