package payment

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SagaStep is the persisted record of one step of a saga run, kept on the
// Payment aggregate for auditability. The live forward/compensate functions
// are execution-time concerns and are not persisted.
type SagaStep struct {
	Name          string     `json:"name"`
	Status        StepStatus `json:"status"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
	CompensatedAt *time.Time `json:"compensated_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Refund groups the cumulative refund fields on a payment.
type Refund struct {
	Amount int64  // cumulative refunded minor units
	Reason string // reason of the most recent refund
	Status string // "", "partial" or "full"
}

// AuditEntry is one append-only audit log record for a payment.
type AuditEntry struct {
	Action string
	Actor  string
	From   Status
	To     Status
	At     time.Time
}

// Payment is the aggregate corresponding to the `payments` table. At most one
// Payment exists per ride; the storage layer enforces the unique ride_id key.
type Payment struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	RideID string
	UserID string

	Amount   int64
	Method   Method
	Provider string
	Status   Status

	// CompletedAt is stamped when the saga finishes successfully and anchors
	// the refund window. UpdatedAt moves on every write (including refunds),
	// so it cannot serve that purpose.
	CompletedAt *time.Time

	Fees          Fees
	Refund        Refund
	TransactionID string

	SagaID     string
	SagaStatus SagaStatus
	SagaSteps  []SagaStep

	RetryCount  int
	NextRetryAt *time.Time
}

var (
	ErrRideIDRequired     = errors.New("ride id is required")
	ErrUserIDRequired     = errors.New("user id is required")
	ErrAmountNotPositive  = errors.New("amount must be positive")
	ErrFeesExceedAmount   = errors.New("fees exceed amount")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrDuplicatePayment   = errors.New("payment already exists for ride")
	ErrPaymentNotTerminal = errors.New("payment has not reached a terminal status")
)

// NewPayment builds a pending Payment for a ride in response to the first
// observation of its booking event. Fees are computed up front so they are
// stable across saga retries.
func NewPayment(rideID, userID string, amount int64, method Method) (*Payment, error) {
	if rideID = strings.TrimSpace(rideID); rideID == "" {
		return nil, ErrRideIDRequired
	}
	if userID = strings.TrimSpace(userID); userID == "" {
		return nil, ErrUserIDRequired
	}
	if amount <= 0 {
		return nil, ErrAmountNotPositive
	}
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}

	fees, err := CalculateFees(amount, method)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Payment{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		UpdatedAt:  now,
		RideID:     rideID,
		UserID:     userID,
		Amount:     amount,
		Method:     method,
		Status:     StatusPending,
		Fees:       fees,
		SagaID:     uuid.NewString(),
		SagaStatus: SagaPending,
	}, nil
}

// ApplyRefund adds amount to the cumulative refund and flips the payment to
// refunded once the full amount has been returned. Callers validate the
// request against the business rules first.
func (p *Payment) ApplyRefund(amount int64, reason string, at time.Time) {
	p.Refund.Amount += amount
	p.Refund.Reason = strings.TrimSpace(reason)
	if p.Refund.Amount >= p.Amount {
		p.Refund.Status = "full"
		p.Status = StatusRefunded
	} else {
		p.Refund.Status = "partial"
	}
	p.UpdatedAt = at
}
