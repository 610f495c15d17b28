package ports

import (
	"context"
	"time"

	"ridebook/internal/domain/payment"
	"ridebook/internal/domain/ride"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RideRepository defines the methods for managing ride data.
type RideRepository interface {
	CreateRide(ctx context.Context, r *ride.Ride) error
	GetByID(ctx context.Context, id string) (*ride.Ride, error)
	// GetForUpdate locks the ride row for the duration of the transaction.
	// Every transition goes through this lock, so concurrent events on the
	// same ride serialize at the database.
	GetForUpdate(ctx context.Context, id string) (*ride.Ride, error)
	// SaveTransition persists the mutated aggregate and appends the audit
	// entry. Must be called on a row previously locked with GetForUpdate.
	SaveTransition(ctx context.Context, r *ride.Ride, entry ride.AuditEntry, eventData map[string]any) error
	SetPaymentStatus(ctx context.Context, rideID string, status ride.PaymentState, transactionID string) error
	// ListActive returns non-terminal rides for the timeout sweeper.
	ListActive(ctx context.Context, limit int) ([]*ride.Ride, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*ride.Ride, error)
}

// PaymentRepository defines the methods for managing payment data.
type PaymentRepository interface {
	// CreatePayment inserts the payment unless one already exists for the
	// ride. Returns false (and no error) on the duplicate, which is how
	// redelivered booking events collapse into a single payment.
	CreatePayment(ctx context.Context, p *payment.Payment) (bool, error)
	GetByID(ctx context.Context, id string) (*payment.Payment, error)
	GetByRideID(ctx context.Context, rideID string) (*payment.Payment, error)
	GetForUpdate(ctx context.Context, id string) (*payment.Payment, error)
	// Save persists the mutable fields of the aggregate (status, saga
	// progress, refund, retry bookkeeping).
	Save(ctx context.Context, p *payment.Payment) error
	// ListDueRetries returns failed-but-retryable payments whose next_retry_at
	// has elapsed.
	ListDueRetries(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error)
	// ListStaleProcessing returns payments still marked processing but
	// untouched since the cutoff: saga runs whose process crashed mid-flight.
	ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*payment.Payment, error)
}

// RideCache is a TTL-bounded read cache of ride snapshots. It only ever holds
// advisory copies; the database row is the source of truth and every cache
// entry expires on its own.
type RideCache interface {
	PutRide(ctx context.Context, r *ride.Ride) error
	GetRide(ctx context.Context, id string) (*ride.Ride, error)
	DropRide(ctx context.Context, id string) error
}

// WalletStore holds wallet balances and saga fund reservations.
type WalletStore interface {
	Balance(ctx context.Context, userID string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64) (int64, error)
	// Reserve atomically moves amount from the balance into a named hold.
	Reserve(ctx context.Context, userID, holdID string, amount int64) error
	// Capture consumes a hold; Release returns it to the balance.
	Capture(ctx context.Context, userID, holdID string) error
	Release(ctx context.Context, userID, holdID string) error
}

// EventPublisher abstracts the message broker publish side.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}
