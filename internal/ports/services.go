package ports

import (
	"context"
	"time"
)

// ----- DTOs for Ride Service -----

// GeoPoint represents a simple latitude/longitude pair with an optional address.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// CreateRideInput is the validated input required to create a ride.
type CreateRideInput struct {
	UserID        string
	Pickup        GeoPoint
	Destination   GeoPoint
	PaymentMethod string // forwarded on booking.created for the payment saga
}

// CreateRideResult is returned by RideService.CreateRide() function.
type CreateRideResult struct {
	RideID                   string  `json:"ride_id"`
	Status                   string  `json:"status"`
	EstimatedFare            int64   `json:"estimated_fare"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
	EstimatedDistanceKM      float64 `json:"estimated_distance_km"`
}

// TransitionRideInput is the validated input for POST /rides/{ride_id}/transition.
type TransitionRideInput struct {
	RideID string
	Event  string
	Actor  string

	// ASSIGN_DRIVER
	DriverID      string
	DriverDetails map[string]any

	// CANCEL_RIDE / DRIVER_CANCEL
	CancelledBy string
	Reason      string

	// COMPLETE_RIDE
	DistanceMeters  int64
	DurationSeconds int64
	FinalFare       int64
	WaitingFee      int64
	Tolls           int64
	Taxes           int64
	Discount        int64
}

// TransitionRideResult reports the transition outcome.
type TransitionRideResult struct {
	RideID     string `json:"ride_id"`
	Status     string `json:"status"`
	FinalFare  *int64 `json:"final_fare,omitempty"`
	Idempotent bool   `json:"idempotent,omitempty"` // true when the event was a redelivery no-op
}

// CancelRideResult is returned by RideService.CancelRide() function.
type CancelRideResult struct {
	RideID      string `json:"ride_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at"`
	Message     string `json:"message"`
}

// RideView is the read-model returned by GET /rides/{ride_id}.
type RideView struct {
	RideID          string     `json:"ride_id"`
	UserID          string     `json:"user_id"`
	DriverID        string     `json:"driver_id,omitempty"`
	Status          string     `json:"status"`
	Pickup          GeoPoint   `json:"pickup"`
	Destination     GeoPoint   `json:"destination"`
	EstimatedFare   int64      `json:"estimated_fare"`
	FinalFare       *int64     `json:"final_fare,omitempty"`
	SurgeMultiplier float64    `json:"surge_multiplier"`
	PaymentStatus   string     `json:"payment_status"`
	CancelledBy     string     `json:"cancelled_by,omitempty"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	RequestedAt     time.Time  `json:"requested_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CachedCopy      bool       `json:"-"` // served from cache, not the database
}

// ----- Ride Service Interface -----

// RideService exposes the boundary for the ride service.
type RideService interface {
	CreateRide(ctx context.Context, in CreateRideInput) (CreateRideResult, error)
	TransitionRide(ctx context.Context, in TransitionRideInput) (TransitionRideResult, error)
	CancelRide(ctx context.Context, rideID, cancelledBy, reason string) (CancelRideResult, error)
	GetRide(ctx context.Context, rideID string) (RideView, error)
	ListUserRides(ctx context.Context, userID string, limit int) ([]RideView, error)
	RunBackgroundConsumers(ctx context.Context)
	RunTimeoutSweeper(ctx context.Context)
}

// ---------------------------------------------------------------------------------------------------------------

// ----- DTOs for Payment Service -----

// PaymentView is the read-model returned by GET /payments/{payment_id}.
type PaymentView struct {
	PaymentID     string         `json:"payment_id"`
	RideID        string         `json:"ride_id"`
	UserID        string         `json:"user_id"`
	Amount        int64          `json:"amount"`
	Method        string         `json:"method"`
	Status        string         `json:"status"`
	PlatformFee   int64          `json:"platform_fee"`
	ProviderFee   int64          `json:"provider_fee"`
	Tax           int64          `json:"tax"`
	TotalFees     int64          `json:"total_fees"`
	TransactionID string         `json:"transaction_id,omitempty"`
	SagaID        string         `json:"saga_id"`
	SagaStatus    string         `json:"saga_status"`
	Steps         []SagaStepView `json:"steps"`
	RefundedTotal int64          `json:"refunded_total,omitempty"`
	RefundStatus  string         `json:"refund_status,omitempty"`
}

// SagaStepView is one saga step in the payment read-model.
type SagaStepView struct {
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
	CompensatedAt *time.Time `json:"compensated_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// RefundInput is the validated input for POST /payments/{payment_id}/refund.
type RefundInput struct {
	PaymentID string
	Amount    int64 // 0 means "refund the remaining refundable amount"
	Reason    string
}

// RefundResult reports the refund outcome.
type RefundResult struct {
	PaymentID     string `json:"payment_id"`
	RefundedNow   int64  `json:"refunded_now"`
	RefundedTotal int64  `json:"refunded_total"`
	RefundStatus  string `json:"refund_status"` // "partial" or "full"
	PaymentStatus string `json:"payment_status"`
}

// ----- Payment Service Interface -----

// PaymentService exposes the boundary for the payment service.
type PaymentService interface {
	GetPayment(ctx context.Context, paymentID string) (PaymentView, error)
	GetPaymentByRide(ctx context.Context, rideID string) (PaymentView, error)
	RefundPayment(ctx context.Context, in RefundInput) (RefundResult, error)
	RunBackgroundConsumers(ctx context.Context)
	RunRetrySweeper(ctx context.Context)
}
