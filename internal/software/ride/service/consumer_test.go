package service

import (
	"context"
	"testing"

	"ridebook/internal/domain/ride"
	"ridebook/internal/general/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestHandleBookingCreatedMovesRideToSearching(t *testing.T) {
	f := newRideFixture(t)
	f.seedRide(t, ride.StatusRequested)

	body := []byte(`{"ride_id": "ride-1", "user_id": "user-1", "amount": 25000, "payment_method": "cash"}`)
	if err := f.svc.handleBookingCreated(context.Background(), amqp.Delivery{Body: body}); err != nil {
		t.Fatalf("handleBookingCreated: %v", err)
	}

	if got := f.repo.rides["ride-1"].Status; got != ride.StatusSearchingDriver {
		t.Errorf("status = %s, want SEARCHING_DRIVER", got)
	}
	if !hasKey(f.pub.keys, "ride.searching_driver") {
		t.Errorf("published %v, want ride.searching_driver", f.pub.keys)
	}
}

func TestHandleBookingCreatedMaterializesUnknownRide(t *testing.T) {
	f := newRideFixture(t)

	// camelCase external producer, ride never seen before
	body := []byte(`{
		"bookingId": "ext-ride-9",
		"customerId": "user-7",
		"fare": 30000,
		"paymentMethod": "card",
		"pickupLocation": {"latitude": 51.5, "longitude": -0.12, "address": "A"},
		"destinationLocation": {"latitude": 51.52, "longitude": -0.1, "address": "B"}
	}`)
	if err := f.svc.handleBookingCreated(context.Background(), amqp.Delivery{Body: body}); err != nil {
		t.Fatalf("handleBookingCreated: %v", err)
	}

	r, ok := f.repo.rides["ext-ride-9"]
	if !ok {
		t.Fatal("ride must be materialized with the producer's id")
	}
	if r.UserID != "user-7" || r.Pricing.EstimatedFare != 30000 {
		t.Errorf("materialized ride = %+v", r)
	}
	if r.Status != ride.StatusSearchingDriver {
		t.Errorf("status = %s, want SEARCHING_DRIVER", r.Status)
	}
}

func TestHandleBookingCreatedRedeliveryAcks(t *testing.T) {
	f := newRideFixture(t)
	f.seedRide(t, ride.StatusSearchingDriver)

	body := []byte(`{"ride_id": "ride-1", "user_id": "user-1", "amount": 25000}`)
	if err := f.svc.handleBookingCreated(context.Background(), amqp.Delivery{Body: body}); err != nil {
		t.Fatalf("redelivered booking must ack, got %v", err)
	}
	if f.repo.transitions != 0 {
		t.Errorf("redelivery must not persist a transition, got %d", f.repo.transitions)
	}
}

func TestHandleBookingCreatedMalformedIsPermanent(t *testing.T) {
	f := newRideFixture(t)

	err := f.svc.handleBookingCreated(context.Background(), amqp.Delivery{Body: []byte("not json")})
	if !rabbitmq.IsPermanent(err) {
		t.Errorf("malformed booking must dead-letter, got %v", err)
	}
}

func TestHandleDriverEventMatched(t *testing.T) {
	f := newRideFixture(t)
	f.seedRide(t, ride.StatusSearchingDriver)

	body := []byte(`{"ride_id": "ride-1", "driver_id": "drv-1"}`)
	err := f.svc.handleDriverEvent(context.Background(), amqp.Delivery{RoutingKey: "driver.matched", Body: body})
	if err != nil {
		t.Fatalf("handleDriverEvent: %v", err)
	}

	r := f.repo.rides["ride-1"]
	if r.Status != ride.StatusDriverAssigned || r.DriverID == nil || *r.DriverID != "drv-1" {
		t.Errorf("ride = %+v", r)
	}
}

func TestHandleDriverEventStaleMatchedAcks(t *testing.T) {
	f := newRideFixture(t)
	r := f.seedRide(t, ride.StatusStarted)
	drv := "drv-1"
	r.DriverID = &drv

	// driver.matched redelivered long after the ride moved on; the target
	// state was already passed, so this is a harmless duplicate
	body := []byte(`{"ride_id": "ride-1", "driver_id": "drv-1"}`)
	err := f.svc.handleDriverEvent(context.Background(), amqp.Delivery{RoutingKey: "driver.matched", Body: body})
	if err != nil {
		t.Fatalf("stale driver.matched must ack, got %v", err)
	}
	if f.repo.transitions != 0 {
		t.Errorf("stale event must not persist a transition, got %d", f.repo.transitions)
	}
	if r.Status != ride.StatusStarted {
		t.Errorf("status = %s, want STARTED untouched", r.Status)
	}
}

func TestHandleBookingCreatedStaleAfterCancelAcks(t *testing.T) {
	f := newRideFixture(t)
	f.seedRide(t, ride.StatusCancelled)

	body := []byte(`{"ride_id": "ride-1", "user_id": "user-1", "amount": 25000}`)
	if err := f.svc.handleBookingCreated(context.Background(), amqp.Delivery{Body: body}); err != nil {
		t.Fatalf("booking redelivered after cancellation must ack, got %v", err)
	}
	if f.repo.transitions != 0 {
		t.Errorf("cancelled ride must stay untouched, got %d transitions", f.repo.transitions)
	}
}

func TestHandleDriverEventUnknownKeySkips(t *testing.T) {
	f := newRideFixture(t)

	err := f.svc.handleDriverEvent(context.Background(), amqp.Delivery{RoutingKey: "driver.pinged", Body: []byte("{}")})
	if err != nil {
		t.Fatalf("unknown driver event must ack, got %v", err)
	}
}

func TestHandlePaymentEventCompletedUpdatesRide(t *testing.T) {
	f := newRideFixture(t)
	r := f.seedRide(t, ride.StatusCompleted)
	f.cach.byID = map[string]*ride.Ride{"ride-1": r}

	body := []byte(`{"ride_id": "ride-1", "payment_id": "p-1", "transaction_id": "tx-9"}`)
	err := f.svc.handlePaymentEvent(context.Background(), amqp.Delivery{RoutingKey: "payment.completed", Body: body})
	if err != nil {
		t.Fatalf("handlePaymentEvent: %v", err)
	}

	if r.Payment.Status != ride.PaymentCompleted || r.Payment.TransactionID != "tx-9" {
		t.Errorf("payment sub-state = %+v", r.Payment)
	}
	if f.cach.drops != 1 {
		t.Errorf("stale cache entry must be dropped, drops = %d", f.cach.drops)
	}
}

func TestHandlePaymentEventFailedKeepsPendingWhenRetryable(t *testing.T) {
	f := newRideFixture(t)
	r := f.seedRide(t, ride.StatusCompleted)

	body := []byte(`{"ride_id": "ride-1", "payment_id": "p-1", "reason": "provider down", "retryable": true}`)
	err := f.svc.handlePaymentEvent(context.Background(), amqp.Delivery{RoutingKey: "payment.failed", Body: body})
	if err != nil {
		t.Fatalf("handlePaymentEvent: %v", err)
	}
	if r.Payment.Status != ride.PaymentPending {
		t.Errorf("retryable failure must keep the ride collectible, got %s", r.Payment.Status)
	}

	// an exhausted saga marks the ride failed
	body = []byte(`{"ride_id": "ride-1", "payment_id": "p-1", "reason": "card declined", "retryable": false}`)
	if err := f.svc.handlePaymentEvent(context.Background(), amqp.Delivery{RoutingKey: "payment.failed", Body: body}); err != nil {
		t.Fatalf("handlePaymentEvent: %v", err)
	}
	if r.Payment.Status != ride.PaymentFailed {
		t.Errorf("exhausted failure must mark the ride failed, got %s", r.Payment.Status)
	}
}

func TestClassifyMapsDomainErrorsToPermanent(t *testing.T) {
	f := newRideFixture(t)

	for _, err := range []error{
		ride.ErrInvalidTransition, ride.ErrRideNotFound, ride.ErrAlreadyAssigned,
	} {
		if !rabbitmq.IsPermanent(f.svc.classify(err)) {
			t.Errorf("%v must classify as permanent", err)
		}
	}

	transient := context.DeadlineExceeded
	if rabbitmq.IsPermanent(f.svc.classify(transient)) {
		t.Error("infrastructure errors must stay transient")
	}
	if f.svc.classify(nil) != nil {
		t.Error("nil must stay nil")
	}
}
