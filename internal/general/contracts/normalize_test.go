package contracts

import (
	"errors"
	"testing"
)

func TestNormalizeBookingCreatedCanonical(t *testing.T) {
	body := []byte(`{
		"ride_id": "r-1",
		"user_id": "u-1",
		"amount": 45000,
		"payment_method": "CARD",
		"correlation_id": "req-1",
		"pickup": {"lat": 51.5, "lng": -0.12, "address": "A"},
		"destination": {"lat": 51.52, "lng": -0.1, "address": "B"}
	}`)

	got, err := NormalizeBookingCreated(body)
	if err != nil {
		t.Fatalf("NormalizeBookingCreated: %v", err)
	}
	if got.RideID != "r-1" || got.UserID != "u-1" || got.Amount != 45000 {
		t.Errorf("identity fields wrong: %+v", got)
	}
	if got.PaymentMethod != "card" {
		t.Errorf("payment method must be lowercased, got %q", got.PaymentMethod)
	}
	if got.CorrelationID != "req-1" {
		t.Errorf("CorrelationID = %q", got.CorrelationID)
	}
	if got.Pickup.Lat != 51.5 || got.Pickup.Lng != -0.12 || got.Pickup.Address != "A" {
		t.Errorf("pickup = %+v", got.Pickup)
	}
}

func TestNormalizeBookingCreatedAliases(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "camelCase producer",
			body: `{
				"rideId": "r-1",
				"customerId": "u-1",
				"fare": 45000,
				"paymentMethod": "cash",
				"pickupLocation": {"latitude": 51.5, "longitude": -0.12},
				"destinationLocation": {"latitude": 51.52, "longitude": -0.1}
			}`,
		},
		{
			name: "booking dialect",
			body: `{
				"booking_id": "r-1",
				"passenger_id": "u-1",
				"estimated_fare": 45000,
				"method": "cash",
				"origin": {"lat": 51.5, "lng": -0.12},
				"dropoff": {"lat": 51.52, "lng": -0.1}
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeBookingCreated([]byte(tt.body))
			if err != nil {
				t.Fatalf("NormalizeBookingCreated: %v", err)
			}
			if got.RideID != "r-1" {
				t.Errorf("RideID = %q, want r-1", got.RideID)
			}
			if got.UserID != "u-1" {
				t.Errorf("UserID = %q, want u-1", got.UserID)
			}
			if got.Amount != 45000 {
				t.Errorf("Amount = %d, want 45000", got.Amount)
			}
			if got.Pickup.Lat != 51.5 || got.Destination.Lng != -0.1 {
				t.Errorf("points = %+v / %+v", got.Pickup, got.Destination)
			}
		})
	}
}

func TestNormalizeBookingCreatedCanonicalWins(t *testing.T) {
	// when both dialects appear, the canonical name takes priority
	body := []byte(`{"ride_id": "canonical", "bookingId": "alias", "user_id": "u-1"}`)
	got, err := NormalizeBookingCreated(body)
	if err != nil {
		t.Fatalf("NormalizeBookingCreated: %v", err)
	}
	if got.RideID != "canonical" {
		t.Errorf("RideID = %q, want canonical", got.RideID)
	}
}

func TestNormalizeBookingCreatedFractionalAmount(t *testing.T) {
	got, err := NormalizeBookingCreated([]byte(`{"ride_id": "r-1", "amount": 45000.0}`))
	if err != nil {
		t.Fatalf("NormalizeBookingCreated: %v", err)
	}
	if got.Amount != 45000 {
		t.Errorf("Amount = %d, want 45000", got.Amount)
	}
}

func TestNormalizeBookingCreatedErrors(t *testing.T) {
	if _, err := NormalizeBookingCreated([]byte(`not json`)); err == nil {
		t.Error("malformed body must fail")
	}
	if _, err := NormalizeBookingCreated([]byte(`{"user_id": "u-1"}`)); !errors.Is(err, ErrMissingRideID) {
		t.Errorf("missing ride id: want ErrMissingRideID, got %v", err)
	}
	if _, err := NormalizeBookingCreated([]byte(`{"ride_id": "   "}`)); !errors.Is(err, ErrMissingRideID) {
		t.Errorf("blank ride id: want ErrMissingRideID, got %v", err)
	}
}
