package contracts

import "time"

// RideStatusMessage is published by the ride service on every lifecycle
// transition. Routing key: "ride.{new_status}" on ExchangeRideTopic.
type RideStatusMessage struct {
	RideID    string    `json:"ride_id"`
	Status    string    `json:"status"` // REQUESTED|SEARCHING_DRIVER|...|NO_SHOW
	Timestamp time.Time `json:"timestamp"`
	DriverID  string    `json:"driver_id,omitempty"`
	Envelope
}

// RideDriverAssigned is the enriched payload for "ride.driver_assigned".
type RideDriverAssigned struct {
	RideID        string       `json:"ride_id"`
	DriverID      string       `json:"driver_id"`
	DriverDetails *DriverBrief `json:"driver_details,omitempty"`
	Envelope
}

// RideCompleted is the enriched payload for "ride.completed".
type RideCompleted struct {
	RideID          string `json:"ride_id"`
	UserID          string `json:"user_id"`
	DriverID        string `json:"driver_id"`
	FinalFare       int64  `json:"final_fare"`
	DistanceMeters  int64  `json:"distance"`
	DurationSeconds int64  `json:"duration"`
	Envelope
}

// RideCancelled is the enriched payload for "ride.cancelled" and
// "ride.no_show".
type RideCancelled struct {
	RideID      string `json:"ride_id"`
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason"`
	Envelope
}
