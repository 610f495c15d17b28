package ride

import (
	"errors"
	"strings"
)

// Status is a ride lifecycle status as stored in the `rides` table.
type Status string

const (
	StatusRequested       Status = "REQUESTED"
	StatusSearchingDriver Status = "SEARCHING_DRIVER"
	StatusDriverAssigned  Status = "DRIVER_ASSIGNED"
	StatusDriverArrived   Status = "DRIVER_ARRIVED"
	StatusStarted         Status = "STARTED"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
	StatusNoShow          Status = "NO_SHOW"
)

var ErrInvalidStatus = errors.New("invalid ride status")

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed ride status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusRequested, StatusSearchingDriver, StatusDriverAssigned,
		StatusDriverArrived, StatusStarted, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// Terminal indicates if the status is in a terminal state.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCancelled || status == StatusNoShow
}

// RoutingKey returns the routing key published when a ride enters this status,
// e.g. "ride.driver_assigned" for DRIVER_ASSIGNED.
func (status Status) RoutingKey() string {
	return "ride." + strings.ToLower(string(status))
}
