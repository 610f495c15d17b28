package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ridebook/internal/domain/ride"
	"ridebook/internal/ports"

	"github.com/jackc/pgx/v5"
)

// RideRepo persists rides using pgx and plain SQL.
type RideRepo struct{}

// NewRideRepo constructs a new RideRepo.
func NewRideRepo() ports.RideRepository {
	return &RideRepo{}
}

// rideColumns is the canonical column list shared by every SELECT.
const rideColumns = `
	id, created_at, updated_at, user_id, driver_id, status,
	pickup_address, pickup_lat, pickup_lng,
	dest_address, dest_lat, dest_lng,
	estimated_fare, final_fare, surge_multiplier,
	requested_at, driver_assigned_at, driver_arrived_at,
	started_at, completed_at, cancelled_at,
	cancelled_by, cancel_reason,
	payment_status, payment_transaction_id`

// CreateRide inserts a new ride row and writes an initial RIDE_REQUESTED event.
func (repo *RideRepo) CreateRide(ctx context.Context, r *ride.Ride) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	// insert only the columns we actually have values for at creation time;
	// a caller-supplied id (booking events carry their own) wins over the
	// generated one
	err = tx.QueryRow(ctx, `
		INSERT INTO rides (
			id, user_id, status,
			pickup_address, pickup_lat, pickup_lng,
			dest_address, dest_lat, dest_lng,
			estimated_fare, surge_multiplier,
			requested_at, payment_status
		)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`,
		r.ID,
		r.UserID,
		r.Status.String(), // typically "REQUESTED"
		r.Pickup.Address, r.Pickup.Latitude, r.Pickup.Longitude,
		r.Destination.Address, r.Destination.Latitude, r.Destination.Longitude,
		r.Pricing.EstimatedFare,
		r.Pricing.SurgeMultiplier,
		r.Timing.RequestedAt,
		string(r.Payment.Status),
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return err
	}

	// insert RIDE_REQUESTED event
	eventData := map[string]any{
		"new_status":     r.Status.String(),
		"estimated_fare": r.Pricing.EstimatedFare,
	}
	return insertRideEvent(ctx, tx, r.ID, "RIDE_REQUESTED", eventData)
}

// GetByID fetches a ride by primary key (uuid).
func (repo *RideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	return repo.fetchOne(ctx, id, "")
}

// GetForUpdate fetches a ride by primary key with a row lock, so concurrent
// transitions on the same ride serialize in the database.
func (repo *RideRepo) GetForUpdate(ctx context.Context, id string) (*ride.Ride, error) {
	return repo.fetchOne(ctx, id, "FOR UPDATE")
}

func (repo *RideRepo) fetchOne(ctx context.Context, id, lock string) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT`+rideColumns+` FROM rides WHERE id = $1 `+lock, id)
	out, err := scanRide(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ride.ErrRideNotFound
		}
		return nil, err
	}
	return out, nil
}

// SaveTransition persists the mutated aggregate fields and appends an audit
// event. The row must already be locked by GetForUpdate in the same tx.
func (repo *RideRepo) SaveTransition(ctx context.Context, r *ride.Ride, entry ride.AuditEntry, eventData map[string]any) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    driver_id = $2,
		    final_fare = $3,
		    driver_assigned_at = $4,
		    driver_arrived_at = $5,
		    started_at = $6,
		    completed_at = $7,
		    cancelled_at = $8,
		    cancelled_by = $9,
		    cancel_reason = $10,
		    updated_at = $11
		WHERE id = $12
	`,
		r.Status.String(),
		r.DriverID,
		r.Pricing.FinalFare,
		r.Timing.DriverAssignedAt,
		r.Timing.DriverArrivedAt,
		r.Timing.StartedAt,
		r.Timing.CompletedAt,
		r.Timing.CancelledAt,
		nullIfEmpty(r.Cancellation.By),
		nullIfEmpty(r.Cancellation.Reason),
		r.UpdatedAt,
		r.ID,
	)
	if err != nil {
		return err
	}

	if eventData == nil {
		eventData = map[string]any{}
	}
	eventData["old_status"] = entry.From.String()
	eventData["new_status"] = entry.To.String()
	eventData["actor"] = entry.Actor
	eventData["timestamp"] = entry.At.UTC().Format("2006-01-02T15:04:05Z07:00")

	return insertRideEvent(ctx, tx, r.ID, eventTypeFor(entry.To), eventData)
}

// SetPaymentStatus stores the payment saga outcome on the ride row.
func (repo *RideRepo) SetPaymentStatus(ctx context.Context, rideID string, status ride.PaymentState, transactionID string) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET payment_status = $1,
		    payment_transaction_id = COALESCE(NULLIF($2, ''), payment_transaction_id),
		    updated_at = now()
		WHERE id = $3
	`, string(status), transactionID, rideID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ride.ErrRideNotFound
	}

	eventData := map[string]any{
		"payment_status": string(status),
	}
	if transactionID != "" {
		eventData["transaction_id"] = transactionID
	}
	return insertRideEvent(ctx, tx, rideID, "PAYMENT_STATUS_CHANGED", eventData)
}

// ListActive returns rides that have not reached a terminal status, oldest
// first, for the timeout sweeper.
func (repo *RideRepo) ListActive(ctx context.Context, limit int) ([]*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT`+rideColumns+`
		FROM rides
		WHERE status NOT IN ('COMPLETED', 'CANCELLED', 'NO_SHOW')
		ORDER BY updated_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query active rides: %w", err)
	}
	defer rows.Close()

	return collectRides(rows)
}

// ListByUser returns recent rides for a user.
func (repo *RideRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT`+rideColumns+`
		FROM rides
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query rides by user: %w", err)
	}
	defer rows.Close()

	return collectRides(rows)
}

// --- helpers ---

func collectRides(rows pgx.Rows) ([]*ride.Ride, error) {
	var rides []*ride.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return rides, nil
}

func scanRide(row pgx.Row) (*ride.Ride, error) {
	var out ride.Ride
	var status, paymentStatus string
	var cancelledBy, cancelReason, paymentTxID *string

	err := row.Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.UserID, &out.DriverID, &status,
		&out.Pickup.Address, &out.Pickup.Latitude, &out.Pickup.Longitude,
		&out.Destination.Address, &out.Destination.Latitude, &out.Destination.Longitude,
		&out.Pricing.EstimatedFare, &out.Pricing.FinalFare, &out.Pricing.SurgeMultiplier,
		&out.Timing.RequestedAt, &out.Timing.DriverAssignedAt, &out.Timing.DriverArrivedAt,
		&out.Timing.StartedAt, &out.Timing.CompletedAt, &out.Timing.CancelledAt,
		&cancelledBy, &cancelReason,
		&paymentStatus, &paymentTxID,
	)
	if err != nil {
		return nil, err
	}

	out.Status = ride.Status(status)
	out.Payment.Status = ride.PaymentState(paymentStatus)
	if cancelledBy != nil {
		out.Cancellation.By = *cancelledBy
	}
	if cancelReason != nil {
		out.Cancellation.Reason = *cancelReason
	}
	if paymentTxID != nil {
		out.Payment.TransactionID = *paymentTxID
	}

	return &out, nil
}

// insertRideEvent writes a row into ride_events with encoded event_data.
func insertRideEvent(ctx context.Context, tx pgx.Tx, rideID, eventType string, eventData any) error {
	body, err := json.Marshal(eventData)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ride_events (ride_id, event_type, event_data)
		VALUES ($1, $2, $3::jsonb)
	`, rideID, eventType, string(body))
	return err
}

// eventTypeFor returns a more precise event name when appropriate.
func eventTypeFor(status ride.Status) string {
	switch status {
	case ride.StatusSearchingDriver:
		return "DRIVER_SEARCH_STARTED"
	case ride.StatusDriverAssigned:
		return "DRIVER_ASSIGNED"
	case ride.StatusDriverArrived:
		return "DRIVER_ARRIVED"
	case ride.StatusStarted:
		return "RIDE_STARTED"
	case ride.StatusCompleted:
		return "RIDE_COMPLETED"
	case ride.StatusCancelled:
		return "RIDE_CANCELLED"
	case ride.StatusNoShow:
		return "RIDE_NO_SHOW"
	default:
		return "STATUS_CHANGED"
	}
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
