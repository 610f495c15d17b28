package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ridebook/internal/domain/ride"
	"ridebook/internal/general/jwt"
	"ridebook/internal/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

// --- Request DTO (HTTP boundary) ---

type transitionRideRequest struct {
	Event         string         `json:"event"` // ASSIGN_DRIVER | DRIVER_ARRIVE | START_RIDE | COMPLETE_RIDE | ...
	DriverID      string         `json:"driver_id,omitempty"`
	DriverDetails map[string]any `json:"driver_details,omitempty"`

	Reason string `json:"reason,omitempty"`

	DistanceMeters  int64 `json:"distance_meters,omitempty"`
	DurationSeconds int64 `json:"duration_seconds,omitempty"`
	FinalFare       int64 `json:"final_fare,omitempty"`
	WaitingFee      int64 `json:"waiting_fee,omitempty"`
	Tolls           int64 `json:"tolls,omitempty"`
	Taxes           int64 `json:"taxes,omitempty"`
	Discount        int64 `json:"discount,omitempty"`
}

// ----- Handler: POST /rides/{ride_id}/transition -----

func (handler *RideHTTPHandler) handleTransitionRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "ride_id is required", nil)
		return
	}
	ctx = handler.logger.WithRideID(ctx, rideID)

	var req transitionRideRequest
	if !handler.decodeStrict(ctx, w, r, &req) {
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	in := ports.TransitionRideInput{
		RideID:          rideID,
		Event:           req.Event,
		Actor:           strings.TrimSpace(claims.Subject),
		DriverID:        strings.TrimSpace(req.DriverID),
		DriverDetails:   req.DriverDetails,
		Reason:          strings.TrimSpace(req.Reason),
		DistanceMeters:  req.DistanceMeters,
		DurationSeconds: req.DurationSeconds,
		FinalFare:       req.FinalFare,
		WaitingFee:      req.WaitingFee,
		Tolls:           req.Tolls,
		Taxes:           req.Taxes,
		Discount:        req.Discount,
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.TransitionRide(ctxWithTimeout, in)
	if err != nil {
		handler.transitionError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// transitionError maps transition failures onto HTTP statuses: unknown ride
// is 404, an illegal move is 409, bad input is 400, storage trouble is 500.
func (handler *RideHTTPHandler) transitionError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ride.ErrRideNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "ride not found", err)
	case errors.Is(err, ride.ErrInvalidTransition), errors.Is(err, ride.ErrAlreadyAssigned):
		handler.httpError(ctx, w, http.StatusConflict, err.Error(), err)
	case errors.Is(err, ride.ErrInvalidEvent), errors.Is(err, ride.ErrDriverRequired):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			handler.httpError(ctx, w, http.StatusInternalServerError, "database error", err)
			return
		}
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	}
}

// ----- Handler: GET /rides/{ride_id} -----

func (handler *RideHTTPHandler) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "ride_id is required", nil)
		return
	}
	ctx = handler.logger.WithRideID(ctx, rideID)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.GetRide(ctxWithTimeout, rideID)
	if err != nil {
		if errors.Is(err, ride.ErrRideNotFound) {
			handler.httpError(ctxWithTimeout, w, http.StatusNotFound, "ride not found", err)
			return
		}
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to load ride", err)
		return
	}

	if res.CachedCopy {
		w.Header().Set("X-Cache", "HIT")
	}
	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
