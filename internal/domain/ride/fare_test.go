package ride

import "testing"

func TestBreakdownForRoundsUpStartedUnits(t *testing.T) {
	// 4.2 km and 7m30s meter as 5 km and 8 minutes
	b := BreakdownFor(4200, 450, 0, 0, 0, 0)

	if b.DistanceFare != 5*farePerKM {
		t.Errorf("DistanceFare = %d, want %d", b.DistanceFare, 5*farePerKM)
	}
	if b.TimeFare != 8*farePerMinute {
		t.Errorf("TimeFare = %d, want %d", b.TimeFare, 8*farePerMinute)
	}
	if b.Base != fareBase {
		t.Errorf("Base = %d, want %d", b.Base, fareBase)
	}
}

func TestBreakdownForClampsNegativeInputs(t *testing.T) {
	b := BreakdownFor(-100, -60, 0, 0, 0, 0)
	if b.DistanceFare != 0 || b.TimeFare != 0 {
		t.Errorf("negative measurements must meter as zero, got %+v", b)
	}
}

func TestComputeFinalFare(t *testing.T) {
	b := FareBreakdown{
		Base:         10000,
		DistanceFare: 12500,
		TimeFare:     4000,
		Waiting:      1000,
		Tolls:        500,
		Taxes:        300,
		Discount:     2000,
	}
	// subtotal = 26300
	if got := ComputeFinalFare(b, 1.0); got != 26300 {
		t.Errorf("surge 1.0: got %d, want 26300", got)
	}
	if got := ComputeFinalFare(b, 1.5); got != 39450 {
		t.Errorf("surge 1.5: got %d, want 39450", got)
	}
	// surge below 1.0 never discounts
	if got := ComputeFinalFare(b, 0.5); got != 26300 {
		t.Errorf("surge 0.5: got %d, want 26300", got)
	}
}

func TestComputeFinalFareNeverNegative(t *testing.T) {
	b := FareBreakdown{Base: 1000, Discount: 5000}
	if got := ComputeFinalFare(b, 2.0); got != 0 {
		t.Errorf("over-discounted fare must clamp to 0, got %d", got)
	}
}

func TestEstimateFare(t *testing.T) {
	// 1 km, 1 minute: base + 1*perKM + 1*perMinute
	want := fareBase + farePerKM + farePerMinute
	if got := EstimateFare(1000, 60, 1.0); got != want {
		t.Errorf("EstimateFare(1000, 60, 1.0) = %d, want %d", got, want)
	}
}

func TestHaversineMeters(t *testing.T) {
	// same point
	if got := HaversineMeters(51.5, -0.12, 51.5, -0.12); got != 0 {
		t.Errorf("identical points: got %d, want 0", got)
	}

	// London -> Paris is roughly 344 km
	got := HaversineMeters(51.5074, -0.1278, 48.8566, 2.3522)
	if got < 330000 || got > 350000 {
		t.Errorf("London-Paris distance %d out of expected range", got)
	}
}

func TestEstimateDurationSecondsFloor(t *testing.T) {
	if got := EstimateDurationSeconds(10); got != 60 {
		t.Errorf("tiny trips floor at 60s, got %d", got)
	}
	if got := EstimateDurationSeconds(21000); got < 3590 || got > 3610 {
		t.Errorf("21 km at 21 km/h should take about an hour, got %ds", got)
	}
}
