package service

import (
	"context"
	"errors"
	"time"

	"ridebook/internal/domain/ride"
	"ridebook/internal/ports"
)

// transitionOutcome is the internal result of one transition attempt.
type transitionOutcome struct {
	ride       *ride.Ride
	entry      ride.AuditEntry
	idempotent bool
}

// TransitionRide validates and applies one lifecycle event to a ride. All
// transitions, from the HTTP API, the bus consumers, and the timeout sweeper,
// funnel through here: the ride row is locked for the duration of the
// transaction, so two events racing on the same ride serialize and the loser
// revalidates against the winner's state.
func (service *rideService) TransitionRide(ctx context.Context, in ports.TransitionRideInput) (ports.TransitionRideResult, error) {
	event, err := ride.ParseEvent(in.Event)
	if err != nil {
		return ports.TransitionRideResult{}, err
	}

	payload := ride.TransitionPayload{
		DriverID:        in.DriverID,
		DriverDetails:   in.DriverDetails,
		CancelledBy:     in.CancelledBy,
		Reason:          in.Reason,
		DistanceMeters:  in.DistanceMeters,
		DurationSeconds: in.DurationSeconds,
		FinalFare:       in.FinalFare,
		WaitingFee:      in.WaitingFee,
		Tolls:           in.Tolls,
		Taxes:           in.Taxes,
		Discount:        in.Discount,
	}

	out, err := service.applyTransition(ctx, in.RideID, event, payload, in.Actor)
	if err != nil {
		return ports.TransitionRideResult{}, err
	}

	result := ports.TransitionRideResult{
		RideID:     out.ride.ID,
		Status:     out.ride.Status.String(),
		Idempotent: out.idempotent,
	}
	if out.ride.Status == ride.StatusCompleted {
		result.FinalFare = out.ride.Pricing.FinalFare
	}
	return result, nil
}

// applyTransition runs the locked transition transaction and, on a real state
// change, refreshes the cache and publishes the lifecycle events.
func (service *rideService) applyTransition(ctx context.Context, rideID string, event ride.Event, payload ride.TransitionPayload, actor string) (transitionOutcome, error) {
	ctx = service.logger.WithRideID(ctx, rideID)
	now := time.Now().UTC()

	var out transitionOutcome
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		r, err := service.rideRepo.GetForUpdate(txCtx, rideID)
		if err != nil {
			return err
		}

		to, err := ride.Next(r.Status, event)
		if err != nil {
			// a redelivered event that would re-produce the current status is
			// an idempotent no-op, not a conflict
			if errors.Is(err, ride.ErrInvalidTransition) && event.Produces() == r.Status {
				out = transitionOutcome{ride: r, idempotent: true}
				return nil
			}
			return err
		}

		entry, err := r.Apply(event, to, payload, actor, now)
		if err != nil {
			return err
		}

		eventData := transitionEventData(event, payload)
		if err := service.rideRepo.SaveTransition(txCtx, r, entry, eventData); err != nil {
			return err
		}

		out = transitionOutcome{ride: r, entry: entry}
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "ride_transition_failed", "Ride transition rejected", err, map[string]any{
			"event": event.String(),
			"actor": actor,
		})
		return transitionOutcome{}, err
	}

	if out.idempotent {
		service.logger.Info(ctx, "ride_transition_replayed", "Ignoring redelivered transition event", map[string]any{
			"event":  event.String(),
			"status": out.ride.Status.String(),
		})
		return out, nil
	}

	// refresh the cache with the committed state
	if err := service.cache.PutRide(ctx, out.ride); err != nil {
		service.logger.Error(ctx, "ride_cache_put_failed", "Failed to cache ride snapshot", err, nil)
	}

	service.logger.Info(ctx, "ride_transitioned", "Ride transitioned", map[string]any{
		"event": event.String(),
		"from":  out.entry.From.String(),
		"to":    out.entry.To.String(),
		"actor": actor,
	})

	service.publishTransitionEvents(ctx, out.ride, out.entry, payload)

	return out, nil
}

// transitionEventData is the event-specific audit payload stored alongside
// the status change.
func transitionEventData(event ride.Event, p ride.TransitionPayload) map[string]any {
	data := map[string]any{}
	switch event {
	case ride.EventAssignDriver:
		data["driver_id"] = p.DriverID
	case ride.EventCompleteRide:
		data["distance_m"] = p.DistanceMeters
		data["duration_s"] = p.DurationSeconds
	case ride.EventCancelRide, ride.EventDriverCancel, ride.EventMarkNoShow:
		data["cancelled_by"] = p.CancelledBy
		data["reason"] = p.Reason
	}
	return data
}
