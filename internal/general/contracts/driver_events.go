package contracts

import "time"

// DriverMatched is published by the driver-matching collaborator when a
// driver accepts a ride. Routing key: "driver.matched" on ExchangeDriverTopic.
type DriverMatched struct {
	RideID        string       `json:"ride_id"`
	DriverID      string       `json:"driver_id"`
	DriverDetails *DriverBrief `json:"driver_details,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
	Envelope
}

// DriverCancelled is published when an assigned driver abandons a ride.
// Routing key: "driver.cancelled" on ExchangeDriverTopic.
type DriverCancelled struct {
	RideID    string    `json:"ride_id"`
	DriverID  string    `json:"driver_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
