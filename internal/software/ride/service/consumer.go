package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ridebook/internal/domain/ride"
	"ridebook/internal/general/contracts"
	"ridebook/internal/general/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RunBackgroundConsumers starts the three consumer loops of the ride service:
// booking events, driver events, and payment events. Each loop restarts with
// a delay when its channel dies and exits when ctx is cancelled.
func (service *rideService) RunBackgroundConsumers(ctx context.Context) {
	go service.consumeLoop(ctx, contracts.QueueRideBookings, "ride-bookings", service.handleBookingCreated)
	go service.consumeLoop(ctx, contracts.QueueRideDriverEvents, "ride-driver-events", service.handleDriverEvent)
	go service.consumeLoop(ctx, contracts.QueueRidePaymentEvents, "ride-payment-events", service.handlePaymentEvent)
}

func (service *rideService) consumeLoop(ctx context.Context, queue, tag string, handler func(context.Context, amqp.Delivery) error) {
	for {
		err := service.rabbitmq.Consume(ctx, queue, tag, 1, handler)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			service.logger.Error(ctx, "consumer_stopped", "Consumer stopped; restarting", err, map[string]any{
				"queue": queue,
			})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}
}

// handleBookingCreated reacts to booking.created by moving the ride into
// SEARCHING_DRIVER. Events can arrive in any producer dialect; the alias
// adapter normalizes them before any business logic runs. A booking for a
// ride this service has never seen is materialized first, so external booking
// producers share the same lifecycle.
func (service *rideService) handleBookingCreated(ctx context.Context, d amqp.Delivery) error {
	booking, err := contracts.NormalizeBookingCreated(d.Body)
	if err != nil {
		// unparseable payloads can never succeed on redelivery
		return rabbitmq.Permanent(fmt.Errorf("normalize booking event: %w", err))
	}

	ctx = service.logger.WithRequestID(ctx, booking.CorrelationID)
	ctx = service.logger.WithRideID(ctx, booking.RideID)

	_, err = service.applyTransition(ctx, booking.RideID, ride.EventSearchDriver, ride.TransitionPayload{}, "system")
	if errors.Is(err, ride.ErrRideNotFound) {
		// booking originated outside this service; create the ride first
		if err := service.materializeBooking(ctx, booking); err != nil {
			return service.classify(err)
		}
		_, err = service.applyTransition(ctx, booking.RideID, ride.EventSearchDriver, ride.TransitionPayload{}, "system")
	}
	return service.classifyTransition(ctx, booking.RideID, ride.EventSearchDriver, err)
}

// materializeBooking inserts a ride row for a booking created by an external
// producer. The given ride id is kept so later events correlate.
func (service *rideService) materializeBooking(ctx context.Context, booking contracts.BookingCreated) error {
	r, err := ride.NewRide(
		booking.UserID,
		ride.Address{Address: booking.Pickup.Address, Latitude: booking.Pickup.Lat, Longitude: booking.Pickup.Lng},
		ride.Address{Address: booking.Destination.Address, Latitude: booking.Destination.Lat, Longitude: booking.Destination.Lng},
		booking.Amount,
		1.0,
	)
	if err != nil {
		return err
	}
	r.ID = booking.RideID

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.rideRepo.CreateRide(txCtx, r)
	})
	if err != nil {
		return err
	}

	service.logger.Info(ctx, "ride_materialized", "Created ride from external booking event", map[string]any{
		"user_id": booking.UserID,
		"amount":  booking.Amount,
	})
	return nil
}

// handleDriverEvent reacts to driver.matched and driver.cancelled.
func (service *rideService) handleDriverEvent(ctx context.Context, d amqp.Delivery) error {
	switch d.RoutingKey {
	case contracts.RouteDriverMatched:
		var msg contracts.DriverMatched
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			return rabbitmq.Permanent(fmt.Errorf("decode driver.matched: %w", err))
		}
		ctx = service.logger.WithRequestID(ctx, msg.CorrelationID)

		payload := ride.TransitionPayload{DriverID: msg.DriverID}
		if msg.DriverDetails != nil {
			payload.DriverDetails = map[string]any{
				"driver_id": msg.DriverDetails.DriverID,
				"name":      msg.DriverDetails.Name,
				"rating":    msg.DriverDetails.Rating,
				"vehicle":   msg.DriverDetails.Vehicle,
			}
		}
		_, err := service.applyTransition(ctx, msg.RideID, ride.EventAssignDriver, payload, "system")
		return service.classifyTransition(ctx, msg.RideID, ride.EventAssignDriver, err)

	case contracts.RouteDriverCancelled:
		var msg contracts.DriverCancelled
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			return rabbitmq.Permanent(fmt.Errorf("decode driver.cancelled: %w", err))
		}
		ctx = service.logger.WithRequestID(ctx, msg.CorrelationID)

		_, err := service.applyTransition(ctx, msg.RideID, ride.EventDriverCancel, ride.TransitionPayload{
			CancelledBy: "driver",
			Reason:      msg.Reason,
		}, "driver")
		return service.classify(err)

	default:
		service.logger.Info(ctx, "driver_event_skipped", "Ignoring unknown driver event", map[string]any{
			"routing_key": d.RoutingKey,
		})
		return nil
	}
}

// handlePaymentEvent reconciles the ride's payment sub-state with the saga
// outcome published by the payment service.
func (service *rideService) handlePaymentEvent(ctx context.Context, d amqp.Delivery) error {
	switch d.RoutingKey {
	case contracts.RoutePaymentCompleted:
		var msg contracts.PaymentCompleted
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			return rabbitmq.Permanent(fmt.Errorf("decode payment.completed: %w", err))
		}
		ctx = service.logger.WithRequestID(ctx, msg.CorrelationID)
		ctx = service.logger.WithRideID(ctx, msg.RideID)

		err := service.setPaymentState(ctx, msg.RideID, ride.PaymentCompleted, msg.TransactionID)
		return service.classify(err)

	case contracts.RoutePaymentFailed:
		var msg contracts.PaymentFailed
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			return rabbitmq.Permanent(fmt.Errorf("decode payment.failed: %w", err))
		}
		ctx = service.logger.WithRequestID(ctx, msg.CorrelationID)
		ctx = service.logger.WithRideID(ctx, msg.RideID)

		// a retryable failure keeps the ride collectible; only an exhausted
		// saga marks the ride's payment as failed
		state := ride.PaymentPending
		if !msg.Retryable {
			state = ride.PaymentFailed
		}
		err := service.setPaymentState(ctx, msg.RideID, state, "")
		return service.classify(err)

	default:
		service.logger.Info(ctx, "payment_event_skipped", "Ignoring unknown payment event", map[string]any{
			"routing_key": d.RoutingKey,
		})
		return nil
	}
}

func (service *rideService) setPaymentState(ctx context.Context, rideID string, state ride.PaymentState, transactionID string) error {
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.rideRepo.SetPaymentStatus(txCtx, rideID, state, transactionID)
	})
	if err != nil {
		return err
	}

	// the cached snapshot is now stale; drop it rather than rebuild it here
	if err := service.cache.DropRide(ctx, rideID); err != nil {
		service.logger.Error(ctx, "ride_cache_drop_failed", "Failed to invalidate ride cache", err, nil)
	}

	service.logger.Info(ctx, "ride_payment_state_set", "Updated ride payment state", map[string]any{
		"payment_status": string(state),
	})
	return nil
}

// classifyTransition resolves a transition rejection against the ride's
// current state before classifying it: a forward event whose target state the
// ride already passed is a stale redelivery and gets acked, not dead-lettered.
func (service *rideService) classifyTransition(ctx context.Context, rideID string, event ride.Event, err error) error {
	if err == nil || !errors.Is(err, ride.ErrInvalidTransition) {
		return service.classify(err)
	}

	var r *ride.Ride
	lookupErr := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		r, err = service.rideRepo.GetByID(txCtx, rideID)
		return err
	})
	if lookupErr == nil && ride.Superseded(r.Status, event) {
		service.logger.Info(ctx, "stale_event_acked", "Ignoring event for a state the ride already passed", map[string]any{
			"event":  event.String(),
			"status": r.Status.String(),
		})
		return nil
	}
	return service.classify(err)
}

// classify maps handler errors onto the delivery contract: domain rejections
// are permanent (dead-letter), everything else is transient (requeue).
func (service *rideService) classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ride.ErrInvalidEvent),
		errors.Is(err, ride.ErrInvalidTransition),
		errors.Is(err, ride.ErrRideNotFound),
		errors.Is(err, ride.ErrAlreadyAssigned),
		errors.Is(err, ride.ErrUserRequired),
		errors.Is(err, ride.ErrDriverRequired):
		return rabbitmq.Permanent(err)
	default:
		return err
	}
}
