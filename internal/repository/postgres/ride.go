package postgres

import (
	"context"
	"database/sql"
	"errors"

	"magadrive/internal/domain"
	"magadrive/internal/repository"
)

// RideStore is a PostgreSQL implementation of repository.RideStore.
type RideStore struct {
	q Querier
}

// NewRideStore creates a new PostgreSQL ride store.
func NewRideStore(db *sql.DB) *RideStore {
	return &RideStore{q: db}
}

// NewRideStoreWithTx creates a ride store using a transaction.
func NewRideStoreWithTx(tx *sql.Tx) *RideStore {
	return &RideStore{q: tx}
}

const rideColumns = `id, rider_id, origin, destination, vehicle_class, status,
	driver_id, driver_name, driver_phone, vehicle_number, driver_rating,
	live_lat, live_lng, eta_seconds, distance_meters, price, currency,
	cancel_reason, trace_id, created_at, updated_at`

// Create persists a new ride.
func (s *RideStore) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	currency := ride.Currency
	if currency == "" {
		currency = "RUB"
	}

	_, err := s.q.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		ride.Origin,
		ride.Destination,
		ride.VehicleClass,
		ride.Status,
		nullString(ride.Driver.ID),
		nullString(ride.Driver.Name),
		nullString(ride.Driver.Phone),
		nullString(ride.Driver.VehicleNumber),
		nullFloat(ride.Driver.Rating),
		nullFloat(ride.LiveLat),
		nullFloat(ride.LiveLng),
		nullInt(ride.EtaSeconds),
		nullFloat(ride.DistanceMeters),
		nullFloat(ride.Price),
		currency,
		nullString(ride.CancelReason),
		nullString(ride.TraceID),
		ride.CreatedAt,
		ride.UpdatedAt,
	)

	return err
}

// GetByID retrieves a ride by ID.
func (s *RideStore) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// GetAll retrieves recent rides, newest first.
func (s *RideStore) GetAll(ctx context.Context) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides ORDER BY created_at DESC LIMIT 100`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// UpdateIfStatus writes the ride only if its stored status still equals
// expected. The status guard in the WHERE clause is what makes concurrent
// double-transitions resolve deterministically.
func (s *RideStore) UpdateIfStatus(ctx context.Context, ride *domain.Ride, expected domain.RideStatus) error {
	query := `
		UPDATE rides
		SET status = $1, driver_id = $2, driver_name = $3, driver_phone = $4,
			vehicle_number = $5, driver_rating = $6, live_lat = $7, live_lng = $8,
			eta_seconds = $9, distance_meters = $10, price = $11, currency = $12,
			cancel_reason = $13, updated_at = $14
		WHERE id = $15 AND status = $16
	`

	currency := ride.Currency
	if currency == "" {
		currency = "RUB"
	}

	result, err := s.q.ExecContext(ctx, query,
		ride.Status,
		nullString(ride.Driver.ID),
		nullString(ride.Driver.Name),
		nullString(ride.Driver.Phone),
		nullString(ride.Driver.VehicleNumber),
		nullFloat(ride.Driver.Rating),
		nullFloat(ride.LiveLat),
		nullFloat(ride.LiveLng),
		nullInt(ride.EtaSeconds),
		nullFloat(ride.DistanceMeters),
		nullFloat(ride.Price),
		currency,
		nullString(ride.CancelReason),
		ride.UpdatedAt,
		ride.ID,
		expected,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	// Zero rows: the ride is gone or another transition won the race.
	var status string
	err = s.q.QueryRowContext(ctx, `SELECT status FROM rides WHERE id = $1`, ride.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}
	return repository.ErrStatusConflict
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var (
		ride          domain.Ride
		driverID      sql.NullString
		driverName    sql.NullString
		driverPhone   sql.NullString
		vehicleNumber sql.NullString
		driverRating  sql.NullFloat64
		liveLat       sql.NullFloat64
		liveLng       sql.NullFloat64
		etaSeconds    sql.NullInt64
		distance      sql.NullFloat64
		price         sql.NullFloat64
		cancelReason  sql.NullString
		traceID       sql.NullString
	)

	err := row.Scan(
		&ride.ID,
		&ride.RiderID,
		&ride.Origin,
		&ride.Destination,
		&ride.VehicleClass,
		&ride.Status,
		&driverID,
		&driverName,
		&driverPhone,
		&vehicleNumber,
		&driverRating,
		&liveLat,
		&liveLng,
		&etaSeconds,
		&distance,
		&price,
		&ride.Currency,
		&cancelReason,
		&traceID,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ride.Driver = domain.DriverInfo{
		ID:            driverID.String,
		Name:          driverName.String,
		Phone:         driverPhone.String,
		VehicleNumber: vehicleNumber.String,
		Rating:        driverRating.Float64,
	}
	ride.LiveLat = liveLat.Float64
	ride.LiveLng = liveLng.Float64
	ride.EtaSeconds = int(etaSeconds.Int64)
	ride.DistanceMeters = distance.Float64
	ride.Price = price.Float64
	ride.CancelReason = cancelReason.String
	ride.TraceID = traceID.String

	return &ride, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func nullInt(i int) sql.NullInt64 {
	if i == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(i), Valid: true}
}
