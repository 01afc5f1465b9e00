/*
ledger.go - Ride registration, amendment, and deletion

AUTHORIZATION MODEL:
  An administrator may register rides for other riders, set explicit
  timestamps, and modify or delete any ride. An ordinary rider may only
  register rides for themselves at the current time, and may only modify or
  delete their own rides while they are still inside the configured recency
  window. Identity itself comes from the external permissions collaborator;
  this package only consumes an Authorizer.

ATOMICITY:
  Amendment resolves its selector ("ride 123" or "my most recent ride") and
  applies its change inside one store transaction, so two agents fixing the
  same ride concurrently cannot interleave into a lost update. Registration
  is a single insert. Either way the ledger is all-or-nothing: on any error
  nothing was persisted.

SEE ALSO:
  - spec.go: the vehicle-spec syntax consumed here
  - store.go: TxRideStore contract
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AUTHORIZATION
// =============================================================================

// Authorizer answers privilege questions for the ledger. Supplied by the
// external identity/permissions layer.
type Authorizer interface {
	IsAdmin(user string) bool
}

// AdminList is a fixed set of administrator usernames.
type AdminList []string

func (l AdminList) IsAdmin(user string) bool {
	for _, admin := range l {
		if admin == user {
			return true
		}
	}
	return false
}

// =============================================================================
// LEDGER SERVICE
// =============================================================================

// Ledger exposes the mutation and query API over a ride store.
type Ledger struct {
	store    TxRideStore
	resolver *Resolver
	auth     Authorizer

	// editWindow bounds how old a ride a non-admin may still modify.
	// Zero or negative means non-admins cannot modify rides at all.
	editWindow time.Duration

	// companies restricts accepted company identifiers; empty means any.
	companies map[string]bool

	now func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithEditWindow sets the non-admin modification window.
func WithEditWindow(d time.Duration) Option {
	return func(l *Ledger) { l.editWindow = d }
}

// WithCompanies restricts the accepted company identifiers.
func WithCompanies(companies []string) Option {
	return func(l *Ledger) {
		l.companies = make(map[string]bool, len(companies))
		for _, c := range companies {
			l.companies[c] = true
		}
	}
}

// WithFixedCouplingCombos permits combining fixed-coupled vehicles with
// others in one spec.
func WithFixedCouplingCombos(allow bool) Option {
	return func(l *Ledger) { l.resolver.AllowFixedCouplingCombos = allow }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a ledger service over the given store and vehicle catalog.
func New(store TxRideStore, catalog VehicleCatalog, auth Authorizer, opts ...Option) *Ledger {
	l := &Ledger{
		store:      store,
		resolver:   &Resolver{Catalog: catalog},
		auth:       auth,
		editWindow: 24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Resolver exposes the ledger's coupling resolver for read-only callers
// (e.g. reconstructing vehicle lists in reports).
func (l *Ledger) Resolver() *Resolver { return l.resolver }

func (l *Ledger) companyKnown(company string) bool {
	if len(l.companies) == 0 {
		return true
	}
	return l.companies[company]
}

// =============================================================================
// REGISTRATION
// =============================================================================

// RegisterInput carries one ride-registration request.
type RegisterInput struct {
	Caller  string
	Company string

	// Spec is the vehicle specification, optionally including the line
	// (VEHICLE[+VEHICLE[!]...][/LINE] or LINE:VEHICLE...).
	Spec string

	// Rider overrides the ride's rider; requires admin privilege unless it
	// names the caller. "" means the caller rides.
	Rider string

	// Timestamp overrides the ride time; requires admin privilege.
	// nil means now.
	Timestamp *time.Time

	RegularPrice decimal.Decimal
	ActualPrice  decimal.Decimal

	// Sandbox computes and returns the would-be ride without persisting it.
	Sandbox bool
}

// Register parses the spec, expands fixed couplings, and persists the ride
// (unless sandboxed). The returned ride carries its assigned id; a sandboxed
// ride has id 0.
func (l *Ledger) Register(ctx context.Context, in RegisterInput) (*Ride, error) {
	if !l.companyKnown(in.Company) {
		return nil, ErrUnknownCompany
	}

	rider := in.Caller
	if in.Rider != "" && in.Rider != in.Caller {
		if !l.auth.IsAdmin(in.Caller) {
			return nil, ErrUnauthorized
		}
		rider = in.Rider
	}

	timestamp := l.now()
	if in.Timestamp != nil {
		if !l.auth.IsAdmin(in.Caller) {
			return nil, ErrUnauthorized
		}
		timestamp = *in.Timestamp
	}

	parsed, err := ParseRideSpec(in.Spec)
	if err != nil {
		return nil, err
	}
	vehicles, err := l.resolver.Expand(in.Company, parsed.Vehicles)
	if err != nil {
		return nil, err
	}

	ride := &Ride{
		Company:      in.Company,
		Rider:        rider,
		Timestamp:    timestamp,
		Line:         parsed.Line,
		RegularPrice: in.RegularPrice,
		ActualPrice:  in.ActualPrice,
		Vehicles:     vehicles,
	}
	if err := ride.Validate(); err != nil {
		return nil, err
	}

	if in.Sandbox {
		return ride, nil
	}

	id, err := l.store.InsertRide(ctx, ride)
	if err != nil {
		return nil, err
	}
	ride.ID = id
	return ride, nil
}

// =============================================================================
// AMENDMENT
// =============================================================================

// Selector identifies the ride to amend: by id, or by "most recent ride of
// Rider", falling back to the caller's most recent ride when both are empty.
type Selector struct {
	RideID *RideID
	Rider  string
}

// Changes is a sparse amendment; nil fields are left untouched.
type Changes struct {
	Company   *string
	Line      *string    // pointer to "" clears the line
	Rider     *string    // admin only
	Timestamp *time.Time // admin only

	// VehicleSpec fully replaces the ride's vehicles. A line given inside
	// the spec also applies, unless Line is set as well.
	VehicleSpec *string

	RegularPrice *decimal.Decimal
	ActualPrice  *decimal.Decimal

	// Delete removes the ride instead of changing it; exclusive with all
	// other fields.
	Delete bool
}

func (c *Changes) any() bool {
	return c.Company != nil || c.Line != nil || c.Rider != nil ||
		c.Timestamp != nil || c.VehicleSpec != nil ||
		c.RegularPrice != nil || c.ActualPrice != nil
}

// Amend resolves the selector and applies the changes (or deletes the ride)
// in one transaction. Returns the amended ride, or nil for a deletion.
func (l *Ledger) Amend(ctx context.Context, caller string, sel Selector, ch Changes) (*Ride, error) {
	isAdmin := l.auth.IsAdmin(caller)

	if !isAdmin {
		if sel.Rider != "" && sel.Rider != caller {
			return nil, ErrUnauthorized
		}
		if ch.Rider != nil || ch.Timestamp != nil {
			return nil, ErrUnauthorized
		}
	}

	switch {
	case ch.Delete && ch.any():
		return nil, ErrDeleteConflictsWithChanges
	case !ch.Delete && !ch.any():
		return nil, ErrNothingToChange
	}

	if ch.Company != nil && !l.companyKnown(*ch.Company) {
		return nil, ErrUnknownCompany
	}

	var amended *Ride
	err := l.store.WithTx(ctx, func(tx RideStore) error {
		ride, err := l.resolveSelector(ctx, tx, caller, sel)
		if err != nil {
			return err
		}

		if !isAdmin {
			if ride.Rider != caller {
				return ErrUnauthorized
			}
			age := l.now().Sub(ride.Timestamp)
			if l.editWindow <= 0 || age > l.editWindow {
				return &TooOldError{RideID: ride.ID, Age: age, Window: l.editWindow}
			}
		}

		if ch.Delete {
			return tx.DeleteRide(ctx, ride.ID)
		}

		if ch.Rider != nil {
			ride.Rider = *ch.Rider
		}
		if ch.Company != nil {
			ride.Company = *ch.Company
		}
		if ch.Line != nil {
			ride.Line = *ch.Line
		}
		if ch.Timestamp != nil {
			ride.Timestamp = *ch.Timestamp
		}
		if ch.RegularPrice != nil {
			ride.RegularPrice = *ch.RegularPrice
		}
		if ch.ActualPrice != nil {
			ride.ActualPrice = *ch.ActualPrice
		}
		if ch.VehicleSpec != nil {
			parsed, err := ParseRideSpec(*ch.VehicleSpec)
			if err != nil {
				return err
			}
			vehicles, err := l.resolver.Expand(ride.Company, parsed.Vehicles)
			if err != nil {
				return err
			}
			ride.Vehicles = vehicles
			if parsed.Line != "" && ch.Line == nil {
				ride.Line = parsed.Line
			}
		}

		if err := ride.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateRide(ctx, ride); err != nil {
			return err
		}
		amended = ride
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amended, nil
}

func (l *Ledger) resolveSelector(ctx context.Context, tx RideStore, caller string, sel Selector) (*Ride, error) {
	if sel.RideID != nil {
		return tx.GetRide(ctx, *sel.RideID)
	}
	rider := sel.Rider
	if rider == "" {
		rider = caller
	}
	return tx.LatestRide(ctx, rider)
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a ride by id.
func (l *Ledger) Get(ctx context.Context, id RideID) (*Ride, error) {
	return l.store.GetRide(ctx, id)
}

// Latest returns a rider's most recent ride.
func (l *Ledger) Latest(ctx context.Context, rider string) (*Ride, error) {
	return l.store.LatestRide(ctx, rider)
}

// Query returns rides matching the filter, stable-ordered by id.
func (l *Ledger) Query(ctx context.Context, filter RideFilter) ([]Ride, error) {
	return l.store.QueryRides(ctx, filter)
}

// History returns the replay feed: rides ascending by timestamp.
func (l *Ledger) History(ctx context.Context, company, rider string) ([]Ride, error) {
	return l.store.RidesByTime(ctx, company, rider)
}
