package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ridebook/internal/domain/ride"
	"ridebook/internal/ports"

	"github.com/redis/go-redis/v9"
)

// RideCacheTTL bounds how stale a cached ride snapshot can get. Every entry
// expires on its own, so a crashed writer never leaves a ride pinned in the
// cache; readers fall back to the database on a miss.
const RideCacheTTL = 30 * time.Second

const rideCachePrefix = "cache:ride:"

// RideCache is a TTL-bounded read cache of ride snapshots backed by Redis.
type RideCache struct {
	client *redis.Client
}

// NewRideCache creates a RideCache on top of an existing client.
func NewRideCache(client *redis.Client) ports.RideCache {
	return &RideCache{client: client}
}

// cachedRide is the wire form of a cached snapshot. Only fields that read
// paths actually consume are stored.
type cachedRide struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	DriverID        *string    `json:"driver_id,omitempty"`
	Status          string     `json:"status"`
	PickupAddress   string     `json:"pickup_address"`
	PickupLat       float64    `json:"pickup_lat"`
	PickupLng       float64    `json:"pickup_lng"`
	DestAddress     string     `json:"dest_address"`
	DestLat         float64    `json:"dest_lat"`
	DestLng         float64    `json:"dest_lng"`
	EstimatedFare   int64      `json:"estimated_fare"`
	FinalFare       *int64     `json:"final_fare,omitempty"`
	SurgeMultiplier float64    `json:"surge_multiplier"`
	PaymentStatus   string     `json:"payment_status"`
	CancelledBy     string     `json:"cancelled_by,omitempty"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	RequestedAt     time.Time  `json:"requested_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PutRide stores a snapshot of the ride with the cache TTL.
func (c *RideCache) PutRide(ctx context.Context, r *ride.Ride) error {
	entry := cachedRide{
		ID:              r.ID,
		UserID:          r.UserID,
		DriverID:        r.DriverID,
		Status:          r.Status.String(),
		PickupAddress:   r.Pickup.Address,
		PickupLat:       r.Pickup.Latitude,
		PickupLng:       r.Pickup.Longitude,
		DestAddress:     r.Destination.Address,
		DestLat:         r.Destination.Latitude,
		DestLng:         r.Destination.Longitude,
		EstimatedFare:   r.Pricing.EstimatedFare,
		FinalFare:       r.Pricing.FinalFare,
		SurgeMultiplier: r.Pricing.SurgeMultiplier,
		PaymentStatus:   string(r.Payment.Status),
		CancelledBy:     r.Cancellation.By,
		CancelReason:    r.Cancellation.Reason,
		RequestedAt:     r.Timing.RequestedAt,
		CompletedAt:     r.Timing.CompletedAt,
		UpdatedAt:       r.UpdatedAt,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, rideCachePrefix+r.ID, data, RideCacheTTL).Err()
}

// GetRide retrieves a cached snapshot. Returns (nil, nil) on a cache miss.
func (c *RideCache) GetRide(ctx context.Context, id string) (*ride.Ride, error) {
	data, err := c.client.Get(ctx, rideCachePrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var entry cachedRide
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}

	out := &ride.Ride{
		ID:        entry.ID,
		UserID:    entry.UserID,
		DriverID:  entry.DriverID,
		Status:    ride.Status(entry.Status),
		UpdatedAt: entry.UpdatedAt,
		Pickup: ride.Address{
			Address:   entry.PickupAddress,
			Latitude:  entry.PickupLat,
			Longitude: entry.PickupLng,
		},
		Destination: ride.Address{
			Address:   entry.DestAddress,
			Latitude:  entry.DestLat,
			Longitude: entry.DestLng,
		},
		Pricing: ride.Pricing{
			EstimatedFare:   entry.EstimatedFare,
			FinalFare:       entry.FinalFare,
			SurgeMultiplier: entry.SurgeMultiplier,
		},
		Timing: ride.Timing{
			RequestedAt: entry.RequestedAt,
			CompletedAt: entry.CompletedAt,
		},
		Cancellation: ride.Cancellation{By: entry.CancelledBy, Reason: entry.CancelReason},
		Payment:      ride.PaymentInfo{Status: ride.PaymentState(entry.PaymentStatus)},
	}
	return out, nil
}

// DropRide removes a ride from the cache.
func (c *RideCache) DropRide(ctx context.Context, id string) error {
	return c.client.Del(ctx, rideCachePrefix+id).Err()
}
