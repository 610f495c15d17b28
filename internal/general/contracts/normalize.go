package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Producers feeding the core do not all agree on field names (user_id vs
// customer_id, method vs payment_method, ...). Business logic only ever sees
// the canonical BookingCreated shape; this adapter absorbs the aliases at the
// boundary.

var ErrMissingRideID = errors.New("booking event carries no ride id")

// bookingAliases maps canonical field -> accepted producer variants, in
// priority order (canonical name first).
var bookingAliases = map[string][]string{
	"ride_id":        {"ride_id", "rideId", "booking_id", "bookingId"},
	"user_id":        {"user_id", "userId", "customer_id", "customerId", "rider_id", "riderId", "passenger_id", "passengerId"},
	"amount":         {"amount", "fare", "estimated_fare", "estimatedFare"},
	"payment_method": {"payment_method", "paymentMethod", "method"},
	"pickup":         {"pickup", "pickup_location", "pickupLocation", "origin"},
	"destination":    {"destination", "destination_location", "destinationLocation", "dropoff"},
	"correlation_id": {"correlation_id", "correlationId", "request_id", "requestId"},
}

// NormalizeBookingCreated decodes an incoming booking event of any known
// producer dialect into the canonical envelope.
func NormalizeBookingCreated(body []byte) (BookingCreated, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return BookingCreated{}, fmt.Errorf("decode booking event: %w", err)
	}

	var out BookingCreated
	out.RideID = pickString(raw, bookingAliases["ride_id"])
	out.UserID = pickString(raw, bookingAliases["user_id"])
	out.Amount = pickInt(raw, bookingAliases["amount"])
	out.PaymentMethod = strings.ToLower(pickString(raw, bookingAliases["payment_method"]))
	out.CorrelationID = pickString(raw, bookingAliases["correlation_id"])
	out.Pickup = pickGeoPoint(raw, bookingAliases["pickup"])
	out.Destination = pickGeoPoint(raw, bookingAliases["destination"])

	if strings.TrimSpace(out.RideID) == "" {
		return BookingCreated{}, ErrMissingRideID
	}

	return out, nil
}

func pickString(raw map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			var s string
			if err := json.Unmarshal(v, &s); err == nil && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func pickInt(raw map[string]json.RawMessage, keys []string) int64 {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			var n json.Number
			if err := json.Unmarshal(v, &n); err == nil {
				if i, err := n.Int64(); err == nil {
					return i
				}
				if f, err := n.Float64(); err == nil {
					return int64(f)
				}
			}
		}
	}
	return 0
}

func pickGeoPoint(raw map[string]json.RawMessage, keys []string) GeoPoint {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			// accept both {lat,lng} and {latitude,longitude} point shapes
			var p struct {
				Lat       *float64 `json:"lat"`
				Lng       *float64 `json:"lng"`
				Latitude  *float64 `json:"latitude"`
				Longitude *float64 `json:"longitude"`
				Address   string   `json:"address"`
			}
			if err := json.Unmarshal(v, &p); err != nil {
				continue
			}
			var out GeoPoint
			out.Address = strings.TrimSpace(p.Address)
			switch {
			case p.Lat != nil && p.Lng != nil:
				out.Lat, out.Lng = *p.Lat, *p.Lng
			case p.Latitude != nil && p.Longitude != nil:
				out.Lat, out.Lng = *p.Latitude, *p.Longitude
			}
			return out
		}
	}
	return GeoPoint{}
}
