package ride

import (
	"errors"
	"strings"
	"time"
)

// PaymentState is the payment sub-state tracked on the ride aggregate.
// It mirrors the outcome of the payment saga, not the Payment aggregate itself.
type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
	PaymentFailed    PaymentState = "failed"
)

// Address is a pickup or destination point.
type Address struct {
	Address   string
	Latitude  float64
	Longitude float64
}

// Pricing groups the fare fields. Amounts are integer minor units.
type Pricing struct {
	EstimatedFare   int64
	FinalFare       *int64 // nil until COMPLETED
	SurgeMultiplier float64
}

// Timing holds the lifecycle timestamps. Each is stamped exactly once, by the
// transition that enters the corresponding state.
type Timing struct {
	RequestedAt      time.Time
	DriverAssignedAt *time.Time
	DriverArrivedAt  *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
}

// Cancellation records who cancelled a ride and why.
type Cancellation struct {
	By     string
	Reason string
}

// PaymentInfo is the payment sub-state on the ride.
type PaymentInfo struct {
	Status        PaymentState
	TransactionID string
}

// Ride is the aggregate corresponding to the `rides` table. It is the durable
// source of truth for the lifecycle; any cached copy is advisory.
type Ride struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID   string
	DriverID *string // nil until assigned

	Status      Status
	Pickup      Address
	Destination Address

	Pricing      Pricing
	Timing       Timing
	Cancellation Cancellation
	Payment      PaymentInfo
}

var (
	ErrUserRequired    = errors.New("user id is required")
	ErrRideNotFound    = errors.New("ride not found")
	ErrDriverRequired  = errors.New("driver id is required")
	ErrAlreadyAssigned = errors.New("driver already assigned")
)

// TransitionPayload carries the event-specific data of a transition request.
type TransitionPayload struct {
	// ASSIGN_DRIVER
	DriverID      string
	DriverDetails map[string]any

	// CANCEL_RIDE / DRIVER_CANCEL / MARK_NO_SHOW
	CancelledBy string
	Reason      string

	// COMPLETE_RIDE. FinalFare > 0 overrides the computed fare (trusted
	// upstream meter); otherwise the fare is derived from the breakdown.
	DistanceMeters  int64
	DurationSeconds int64
	FinalFare       int64
	WaitingFee      int64
	Tolls           int64
	Taxes           int64
	Discount        int64
}

// AuditEntry is one append-only audit log record for a ride.
type AuditEntry struct {
	Action string
	Actor  string
	From   Status
	To     Status
	At     time.Time
}

// NewRide creates a new ride aggregate in REQUESTED state.
func NewRide(userID string, pickup, destination Address, estimatedFare int64, surge float64) (*Ride, error) {
	if userID = strings.TrimSpace(userID); userID == "" {
		return nil, ErrUserRequired
	}
	if surge < 1.0 {
		surge = 1.0
	}

	now := time.Now().UTC()
	return &Ride{
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      userID,
		Status:      StatusRequested,
		Pickup:      pickup,
		Destination: destination,
		Pricing: Pricing{
			EstimatedFare:   estimatedFare,
			SurgeMultiplier: surge,
		},
		Timing:  Timing{RequestedAt: now},
		Payment: PaymentInfo{Status: PaymentPending},
	}, nil
}

// Apply mutates the aggregate for a validated transition to `to`, stamping the
// timing field owned by the target state and recording event payload data.
// Callers must have computed `to` via Next; Apply enforces the event-specific
// invariants (driver uniqueness, fare computation).
func (ride *Ride) Apply(event Event, to Status, p TransitionPayload, actor string, at time.Time) (AuditEntry, error) {
	from := ride.Status

	switch event {
	case EventAssignDriver:
		driverID := strings.TrimSpace(p.DriverID)
		if driverID == "" {
			return AuditEntry{}, ErrDriverRequired
		}
		// reassignment requires an explicit unassign first, never an overwrite
		if ride.DriverID != nil && *ride.DriverID != driverID {
			return AuditEntry{}, ErrAlreadyAssigned
		}
		ride.DriverID = &driverID
		ride.Timing.DriverAssignedAt = &at

	case EventDriverArrive:
		ride.Timing.DriverArrivedAt = &at

	case EventStartRide:
		ride.Timing.StartedAt = &at

	case EventCompleteRide:
		fare := p.FinalFare
		if fare <= 0 {
			breakdown := BreakdownFor(p.DistanceMeters, p.DurationSeconds, p.WaitingFee, p.Tolls, p.Taxes, p.Discount)
			fare = ComputeFinalFare(breakdown, ride.Pricing.SurgeMultiplier)
		}
		ride.Pricing.FinalFare = &fare
		ride.Timing.CompletedAt = &at

	case EventCancelRide, EventDriverCancel:
		by := strings.TrimSpace(p.CancelledBy)
		if by == "" {
			by = actor
		}
		ride.Cancellation = Cancellation{By: by, Reason: strings.TrimSpace(p.Reason)}
		ride.Timing.CancelledAt = &at

	case EventMarkNoShow:
		ride.Cancellation = Cancellation{By: actor, Reason: strings.TrimSpace(p.Reason)}
		ride.Timing.CancelledAt = &at
	}

	ride.Status = to
	ride.UpdatedAt = at

	return AuditEntry{
		Action: "status_change",
		Actor:  actor,
		From:   from,
		To:     to,
		At:     at,
	}, nil
}

// EnteredStateAt returns the timestamp at which the ride entered its current
// state. The timeout sweeper derives deadlines from this persisted value, so a
// restart never loses a pending deadline.
func (ride *Ride) EnteredStateAt() time.Time {
	switch ride.Status {
	case StatusRequested:
		return ride.Timing.RequestedAt
	case StatusSearchingDriver:
		// SEARCHING_DRIVER has no dedicated timestamp column; UpdatedAt is
		// stamped by the transition that entered it.
		return ride.UpdatedAt
	case StatusDriverAssigned:
		if ride.Timing.DriverAssignedAt != nil {
			return *ride.Timing.DriverAssignedAt
		}
	case StatusDriverArrived:
		if ride.Timing.DriverArrivedAt != nil {
			return *ride.Timing.DriverArrivedAt
		}
	case StatusStarted:
		if ride.Timing.StartedAt != nil {
			return *ride.Timing.StartedAt
		}
	}
	return ride.UpdatedAt
}
