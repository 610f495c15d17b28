package ride

import (
	"errors"
	"testing"
	"time"
)

func newTestRide(t *testing.T) *Ride {
	t.Helper()
	r, err := NewRide("user-1",
		Address{Address: "A", Latitude: 51.5, Longitude: -0.12},
		Address{Address: "B", Latitude: 51.52, Longitude: -0.10},
		25000, 1.0,
	)
	if err != nil {
		t.Fatalf("NewRide: %v", err)
	}
	return r
}

func TestNewRide(t *testing.T) {
	r := newTestRide(t)
	if r.Status != StatusRequested {
		t.Errorf("new ride status = %s, want REQUESTED", r.Status)
	}
	if r.Payment.Status != PaymentPending {
		t.Errorf("new ride payment status = %s, want pending", r.Payment.Status)
	}
	if r.Timing.RequestedAt.IsZero() {
		t.Error("RequestedAt must be stamped")
	}

	if _, err := NewRide("  ", Address{}, Address{}, 0, 1.0); !errors.Is(err, ErrUserRequired) {
		t.Errorf("blank user: want ErrUserRequired, got %v", err)
	}
}

func TestApplyAssignDriver(t *testing.T) {
	r := newTestRide(t)
	r.Status = StatusSearchingDriver
	at := time.Now().UTC()

	entry, err := r.Apply(EventAssignDriver, StatusDriverAssigned, TransitionPayload{DriverID: "drv-1"}, "system", at)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if r.DriverID == nil || *r.DriverID != "drv-1" {
		t.Errorf("DriverID = %v, want drv-1", r.DriverID)
	}
	if r.Timing.DriverAssignedAt == nil || !r.Timing.DriverAssignedAt.Equal(at) {
		t.Error("DriverAssignedAt must be stamped with the transition time")
	}
	if entry.From != StatusSearchingDriver || entry.To != StatusDriverAssigned {
		t.Errorf("audit entry %+v has wrong from/to", entry)
	}

	// re-assigning the same driver is allowed (idempotent redelivery)
	r.Status = StatusSearchingDriver
	if _, err := r.Apply(EventAssignDriver, StatusDriverAssigned, TransitionPayload{DriverID: "drv-1"}, "system", at); err != nil {
		t.Errorf("same driver reassignment: %v", err)
	}

	// a different driver is a conflict
	r.Status = StatusSearchingDriver
	if _, err := r.Apply(EventAssignDriver, StatusDriverAssigned, TransitionPayload{DriverID: "drv-2"}, "system", at); !errors.Is(err, ErrAlreadyAssigned) {
		t.Errorf("want ErrAlreadyAssigned, got %v", err)
	}

	r2 := newTestRide(t)
	r2.Status = StatusSearchingDriver
	if _, err := r2.Apply(EventAssignDriver, StatusDriverAssigned, TransitionPayload{}, "system", at); !errors.Is(err, ErrDriverRequired) {
		t.Errorf("missing driver: want ErrDriverRequired, got %v", err)
	}
}

func TestApplyCompleteComputesFare(t *testing.T) {
	r := newTestRide(t)
	r.Status = StatusStarted
	r.Pricing.SurgeMultiplier = 1.0
	at := time.Now().UTC()

	p := TransitionPayload{DistanceMeters: 5000, DurationSeconds: 600, Tolls: 700}
	if _, err := r.Apply(EventCompleteRide, StatusCompleted, p, "driver", at); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := ComputeFinalFare(BreakdownFor(5000, 600, 0, 700, 0, 0), 1.0)
	if r.Pricing.FinalFare == nil || *r.Pricing.FinalFare != want {
		t.Errorf("FinalFare = %v, want %d", r.Pricing.FinalFare, want)
	}
	if r.Timing.CompletedAt == nil {
		t.Error("CompletedAt must be stamped")
	}
}

func TestApplyCompleteTrustsUpstreamFare(t *testing.T) {
	r := newTestRide(t)
	r.Status = StatusStarted
	at := time.Now().UTC()

	if _, err := r.Apply(EventCompleteRide, StatusCompleted, TransitionPayload{FinalFare: 31400}, "driver", at); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if r.Pricing.FinalFare == nil || *r.Pricing.FinalFare != 31400 {
		t.Errorf("FinalFare = %v, want 31400", r.Pricing.FinalFare)
	}
}

func TestApplyCancelRecordsParty(t *testing.T) {
	r := newTestRide(t)
	at := time.Now().UTC()

	if _, err := r.Apply(EventCancelRide, StatusCancelled, TransitionPayload{CancelledBy: "user", Reason: "changed plans"}, "user", at); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if r.Cancellation.By != "user" || r.Cancellation.Reason != "changed plans" {
		t.Errorf("Cancellation = %+v", r.Cancellation)
	}
	if r.Timing.CancelledAt == nil {
		t.Error("CancelledAt must be stamped")
	}

	// actor fills in when the payload omits the party
	r2 := newTestRide(t)
	if _, err := r2.Apply(EventCancelRide, StatusCancelled, TransitionPayload{Reason: "timeout"}, "system", at); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if r2.Cancellation.By != "system" {
		t.Errorf("Cancellation.By = %q, want system", r2.Cancellation.By)
	}
}

func TestEnteredStateAt(t *testing.T) {
	r := newTestRide(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r.Timing.RequestedAt = base
	r.UpdatedAt = base.Add(time.Minute)

	if got := r.EnteredStateAt(); !got.Equal(base) {
		t.Errorf("REQUESTED: EnteredStateAt = %v, want RequestedAt", got)
	}

	r.Status = StatusSearchingDriver
	if got := r.EnteredStateAt(); !got.Equal(r.UpdatedAt) {
		t.Errorf("SEARCHING_DRIVER: EnteredStateAt = %v, want UpdatedAt", got)
	}

	assigned := base.Add(2 * time.Minute)
	r.Status = StatusDriverAssigned
	r.Timing.DriverAssignedAt = &assigned
	if got := r.EnteredStateAt(); !got.Equal(assigned) {
		t.Errorf("DRIVER_ASSIGNED: EnteredStateAt = %v, want DriverAssignedAt", got)
	}

	started := base.Add(10 * time.Minute)
	r.Status = StatusStarted
	r.Timing.StartedAt = &started
	if got := r.EnteredStateAt(); !got.Equal(started) {
		t.Errorf("STARTED: EnteredStateAt = %v, want StartedAt", got)
	}
}

func TestStatusHelpers(t *testing.T) {
	if !StatusCompleted.Terminal() || !StatusCancelled.Terminal() || !StatusNoShow.Terminal() {
		t.Error("COMPLETED, CANCELLED, NO_SHOW must be terminal")
	}
	if StatusStarted.Terminal() {
		t.Error("STARTED must not be terminal")
	}
	if got := StatusDriverAssigned.RoutingKey(); got != "ride.driver_assigned" {
		t.Errorf("RoutingKey = %q", got)
	}

	if _, err := ParseStatus("searching_driver"); err != nil {
		t.Errorf("ParseStatus lowercase: %v", err)
	}
	if _, err := ParseStatus("LIMBO"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("want ErrInvalidStatus, got %v", err)
	}
}
