package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"ridebook/internal/domain/ride"
	"ridebook/internal/general/contracts"
)

// generateCorrelationID creates a simple correlation ID for tracing requests.
func generateCorrelationID() string {
	var b [3]byte // 6 hex chars
	_, _ = rand.Read(b[:])
	ts := time.Now().UTC().Format("20060102T150405")
	return "req_" + ts + "_" + hex.EncodeToString(b[:])
}

// publishJSON marshals and publishes a message to the given exchange.
func (service *rideService) publishJSON(ctx context.Context, exchange, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := service.pub.Publish(exchange, routingKey, body); err != nil {
		return err
	}

	service.logger.Info(ctx, "event_published", "Published event to RabbitMQ", map[string]any{
		"exchange":    exchange,
		"routing_key": routingKey,
	})
	return nil
}

// publishRideStatus sends a ride status update to the ride topic exchange
// using routing key ride.{status}, e.g. ride.driver_assigned.
func (service *rideService) publishRideStatus(ctx context.Context, status ride.Status, msg contracts.RideStatusMessage) error {
	return service.publishJSON(ctx, contracts.ExchangeRideTopic, status.RoutingKey(), msg)
}

// publishTransitionEvents emits the status message for every transition plus
// the enriched payload owned by the new state. Publishing happens after
// commit; a broker outage loses the notification, never the state change.
func (service *rideService) publishTransitionEvents(ctx context.Context, r *ride.Ride, entry ride.AuditEntry, p ride.TransitionPayload) {
	envelope := contracts.Envelope{
		Producer: "ride-service",
		SentAt:   time.Now().UTC(),
	}

	statusMsg := contracts.RideStatusMessage{
		RideID:    r.ID,
		Status:    r.Status.String(),
		Timestamp: entry.At,
		Envelope:  envelope,
	}
	if r.DriverID != nil {
		statusMsg.DriverID = *r.DriverID
	}
	if err := service.publishRideStatus(ctx, r.Status, statusMsg); err != nil {
		service.logger.Error(ctx, "ride_status_publish_failed", "Failed to publish ride status", err, map[string]any{
			"status": r.Status.String(),
		})
	}

	switch r.Status {
	case ride.StatusDriverAssigned:
		msg := contracts.RideDriverAssigned{
			RideID:   r.ID,
			DriverID: p.DriverID,
			Envelope: envelope,
		}
		if brief := driverBriefFrom(p.DriverDetails); brief != nil {
			msg.DriverDetails = brief
		}
		if err := service.publishJSON(ctx, contracts.ExchangeRideTopic, ride.StatusDriverAssigned.RoutingKey(), msg); err != nil {
			service.logger.Error(ctx, "ride_event_publish_failed", "Failed to publish driver assignment", err, nil)
		}

	case ride.StatusCompleted:
		msg := contracts.RideCompleted{
			RideID:          r.ID,
			UserID:          r.UserID,
			DistanceMeters:  p.DistanceMeters,
			DurationSeconds: p.DurationSeconds,
			Envelope:        envelope,
		}
		if r.DriverID != nil {
			msg.DriverID = *r.DriverID
		}
		if r.Pricing.FinalFare != nil {
			msg.FinalFare = *r.Pricing.FinalFare
		}
		if err := service.publishJSON(ctx, contracts.ExchangeRideTopic, ride.StatusCompleted.RoutingKey(), msg); err != nil {
			service.logger.Error(ctx, "ride_event_publish_failed", "Failed to publish ride completion", err, nil)
		}

	case ride.StatusCancelled, ride.StatusNoShow:
		msg := contracts.RideCancelled{
			RideID:      r.ID,
			CancelledBy: r.Cancellation.By,
			Reason:      r.Cancellation.Reason,
			Envelope:    envelope,
		}
		if err := service.publishJSON(ctx, contracts.ExchangeRideTopic, r.Status.RoutingKey(), msg); err != nil {
			service.logger.Error(ctx, "ride_event_publish_failed", "Failed to publish ride cancellation", err, nil)
		}
	}
}

// driverBriefFrom lifts the loose driver details map into the typed brief.
func driverBriefFrom(details map[string]any) *contracts.DriverBrief {
	if len(details) == 0 {
		return nil
	}
	brief := &contracts.DriverBrief{}
	if v, ok := details["driver_id"].(string); ok {
		brief.DriverID = v
	}
	if v, ok := details["name"].(string); ok {
		brief.Name = v
	}
	if v, ok := details["rating"].(float64); ok {
		brief.Rating = v
	}
	if v, ok := details["vehicle"].(string); ok {
		brief.Vehicle = v
	}
	return brief
}
