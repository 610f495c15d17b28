package service

import (
	"context"
	"time"

	"ridebook/internal/domain/ride"
	"ridebook/internal/ports"
)

// CancelRide cancels a ride on behalf of the given party. Cancellation is
// valid from any non-terminal state, so this is a thin wrapper over the
// transition engine.
func (service *rideService) CancelRide(ctx context.Context, rideID, cancelledBy, reason string) (ports.CancelRideResult, error) {
	event := ride.EventCancelRide
	if cancelledBy == "driver" {
		event = ride.EventDriverCancel
	}

	out, err := service.applyTransition(ctx, rideID, event, ride.TransitionPayload{
		CancelledBy: cancelledBy,
		Reason:      reason,
	}, cancelledBy)
	if err != nil {
		return ports.CancelRideResult{}, err
	}

	cancelledAt := time.Now().UTC()
	if out.ride.Timing.CancelledAt != nil {
		cancelledAt = *out.ride.Timing.CancelledAt
	}

	return ports.CancelRideResult{
		RideID:      out.ride.ID,
		Status:      out.ride.Status.String(),
		CancelledAt: cancelledAt.Format(time.RFC3339),
		Message:     "ride cancelled",
	}, nil
}
