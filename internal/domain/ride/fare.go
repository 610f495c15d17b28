package ride

import "math"

// Fare rates in integer minor units. Distance is metered per started km,
// time per started minute.
const (
	fareBase      int64 = 10000
	farePerKM     int64 = 2500
	farePerMinute int64 = 500
)

// FareBreakdown captures the components of a final fare before surge.
type FareBreakdown struct {
	Base         int64
	DistanceFare int64
	TimeFare     int64
	Waiting      int64
	Tolls        int64
	Taxes        int64
	Discount     int64
}

// Subtotal is base + distanceFare + timeFare + waiting + tolls + taxes - discount.
func (b FareBreakdown) Subtotal() int64 {
	return b.Base + b.DistanceFare + b.TimeFare + b.Waiting + b.Tolls + b.Taxes - b.Discount
}

// BreakdownFor builds a fare breakdown from trip measurements and extras.
func BreakdownFor(distanceMeters, durationSeconds, waiting, tolls, taxes, discount int64) FareBreakdown {
	if distanceMeters < 0 {
		distanceMeters = 0
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	km := (distanceMeters + 999) / 1000
	minutes := (durationSeconds + 59) / 60

	return FareBreakdown{
		Base:         fareBase,
		DistanceFare: km * farePerKM,
		TimeFare:     minutes * farePerMinute,
		Waiting:      waiting,
		Tolls:        tolls,
		Taxes:        taxes,
		Discount:     discount,
	}
}

// ComputeFinalFare applies the surge multiplier to the breakdown subtotal.
func ComputeFinalFare(b FareBreakdown, surge float64) int64 {
	if surge < 1.0 {
		surge = 1.0
	}
	subtotal := b.Subtotal()
	if subtotal < 0 {
		subtotal = 0
	}
	return int64(math.Round(float64(subtotal) * surge))
}

// EstimateFare predicts a fare for a trip of the given size with no extras.
func EstimateFare(distanceMeters, durationSeconds int64, surge float64) int64 {
	return ComputeFinalFare(BreakdownFor(distanceMeters, durationSeconds, 0, 0, 0, 0), surge)
}

// HaversineMeters is the great-circle distance between two coordinates.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) int64 {
	const earthRadiusM = 6371000.0
	a1 := lat1 * math.Pi / 180
	a2 := lat2 * math.Pi / 180
	da := (lat2 - lat1) * math.Pi / 180
	db := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(da/2)*math.Sin(da/2) +
		math.Cos(a1)*math.Cos(a2)*math.Sin(db/2)*math.Sin(db/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return int64(math.Round(earthRadiusM * c))
}

// EstimateDurationSeconds estimates trip duration with an average city speed.
func EstimateDurationSeconds(distanceMeters int64) int64 {
	const avgSpeedKMH = 21.0
	seconds := float64(distanceMeters) / (avgSpeedKMH * 1000.0 / 3600.0)
	s := int64(math.Ceil(seconds))
	if s < 60 {
		return 60
	}
	return s
}
