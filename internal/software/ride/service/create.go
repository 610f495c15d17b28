package service

import (
	"context"
	"fmt"
	"time"

	"ridebook/internal/domain/ride"
	"ridebook/internal/general/contracts"
	"ridebook/internal/ports"
)

// CreateRide creates a new ride request in REQUESTED state and publishes
// booking.created. The booking event is the single trigger for both the
// driver search (consumed back by this service) and the payment saga.
func (service *rideService) CreateRide(ctx context.Context, in ports.CreateRideInput) (ports.CreateRideResult, error) {
	correlationID := generateCorrelationID()
	ctx = service.logger.WithRequestID(ctx, correlationID)

	// estimate the trip up front so the response and the booking event agree
	distanceMeters := ride.HaversineMeters(
		in.Pickup.Latitude, in.Pickup.Longitude,
		in.Destination.Latitude, in.Destination.Longitude,
	)
	durationSeconds := ride.EstimateDurationSeconds(distanceMeters)
	surge := 1.0 // surge pricing feed is not wired yet; rides book at base rate
	estimatedFare := ride.EstimateFare(distanceMeters, durationSeconds, surge)

	r, err := ride.NewRide(
		in.UserID,
		ride.Address{Address: in.Pickup.Address, Latitude: in.Pickup.Latitude, Longitude: in.Pickup.Longitude},
		ride.Address{Address: in.Destination.Address, Latitude: in.Destination.Latitude, Longitude: in.Destination.Longitude},
		estimatedFare,
		surge,
	)
	if err != nil {
		return ports.CreateRideResult{}, err
	}

	// persist the ride (REQUESTED)
	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.rideRepo.CreateRide(txCtx, r)
	})
	if err != nil {
		service.logger.Error(ctx, "ride_create_failed", "Failed to create ride", err, map[string]any{
			"user_id": in.UserID,
		})
		return ports.CreateRideResult{}, err
	}
	ctx = service.logger.WithRideID(ctx, r.ID)

	// cache the fresh snapshot; failures here are advisory only
	if err := service.cache.PutRide(ctx, r); err != nil {
		service.logger.Error(ctx, "ride_cache_put_failed", "Failed to cache ride snapshot", err, nil)
	}

	// publish booking.created; the lifecycle and the payment saga both hang
	// off this event
	booking := contracts.BookingCreated{
		RideID:        r.ID,
		UserID:        r.UserID,
		Amount:        estimatedFare,
		PaymentMethod: in.PaymentMethod,
		Pickup:        contracts.GeoPoint{Lat: in.Pickup.Latitude, Lng: in.Pickup.Longitude, Address: in.Pickup.Address},
		Destination:   contracts.GeoPoint{Lat: in.Destination.Latitude, Lng: in.Destination.Longitude, Address: in.Destination.Address},
		Envelope: contracts.Envelope{
			CorrelationID: correlationID,
			Producer:      "ride-service",
			SentAt:        time.Now().UTC(),
		},
	}
	if err := service.publishJSON(ctx, contracts.ExchangeBookingTopic, contracts.RouteBookingCreated, booking); err != nil {
		service.logger.Error(ctx, "booking_publish_failed", "Failed to publish booking.created", err, nil)
	}

	// publish initial ride status (REQUESTED)
	statusMsg := contracts.RideStatusMessage{
		RideID:    r.ID,
		Status:    r.Status.String(),
		Timestamp: time.Now().UTC(),
		Envelope: contracts.Envelope{
			CorrelationID: correlationID,
			Producer:      "ride-service",
		},
	}
	if err := service.publishRideStatus(ctx, r.Status, statusMsg); err != nil {
		service.logger.Error(ctx, "ride_status_publish_failed", "Failed to publish ride status", err, nil)
	}

	service.logger.Info(ctx, "ride_created", fmt.Sprintf("Ride %s created", r.ID), map[string]any{
		"user_id":        in.UserID,
		"estimated_fare": estimatedFare,
		"distance_m":     distanceMeters,
	})

	return ports.CreateRideResult{
		RideID:                   r.ID,
		Status:                   r.Status.String(),
		EstimatedFare:            estimatedFare,
		EstimatedDurationMinutes: int((durationSeconds + 59) / 60),
		EstimatedDistanceKM:      float64(distanceMeters) / 1000.0,
	}, nil
}

// GetRide serves the ride read-model, preferring the cache and falling back
// to the database (and refilling the cache) on a miss.
func (service *rideService) GetRide(ctx context.Context, rideID string) (ports.RideView, error) {
	ctx = service.logger.WithRideID(ctx, rideID)

	if cached, err := service.cache.GetRide(ctx, rideID); err != nil {
		service.logger.Error(ctx, "ride_cache_get_failed", "Failed to read ride cache", err, nil)
	} else if cached != nil {
		view := rideToView(cached)
		view.CachedCopy = true
		return view, nil
	}

	var r *ride.Ride
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		r, err = service.rideRepo.GetByID(txCtx, rideID)
		return err
	})
	if err != nil {
		return ports.RideView{}, err
	}

	if err := service.cache.PutRide(ctx, r); err != nil {
		service.logger.Error(ctx, "ride_cache_put_failed", "Failed to cache ride snapshot", err, nil)
	}

	return rideToView(r), nil
}

// ListUserRides returns the user's rides, newest first. This always reads the
// database; the per-ride cache only serves single lookups.
func (service *rideService) ListUserRides(ctx context.Context, userID string, limit int) ([]ports.RideView, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var rides []*ride.Ride
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		rides, err = service.rideRepo.ListByUser(txCtx, userID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	views := make([]ports.RideView, len(rides))
	for i, r := range rides {
		views[i] = rideToView(r)
	}
	return views, nil
}

func rideToView(r *ride.Ride) ports.RideView {
	view := ports.RideView{
		RideID:          r.ID,
		UserID:          r.UserID,
		Status:          r.Status.String(),
		Pickup:          ports.GeoPoint{Latitude: r.Pickup.Latitude, Longitude: r.Pickup.Longitude, Address: r.Pickup.Address},
		Destination:     ports.GeoPoint{Latitude: r.Destination.Latitude, Longitude: r.Destination.Longitude, Address: r.Destination.Address},
		EstimatedFare:   r.Pricing.EstimatedFare,
		FinalFare:       r.Pricing.FinalFare,
		SurgeMultiplier: r.Pricing.SurgeMultiplier,
		PaymentStatus:   string(r.Payment.Status),
		CancelledBy:     r.Cancellation.By,
		CancelReason:    r.Cancellation.Reason,
		RequestedAt:     r.Timing.RequestedAt,
		CompletedAt:     r.Timing.CompletedAt,
	}
	if r.DriverID != nil {
		view.DriverID = *r.DriverID
	}
	return view
}
