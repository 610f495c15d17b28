package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ridebook/internal/domain/payment"
	"ridebook/internal/domain/user"
	"ridebook/internal/general/jwt"
	"ridebook/internal/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

// --- Request DTO (HTTP boundary) ---

type createRideRequest struct {
	UserID               string  `json:"user_id"`
	PickupLatitude       float64 `json:"pickup_latitude"`
	PickupLongitude      float64 `json:"pickup_longitude"`
	PickupAddress        string  `json:"pickup_address"`
	DestinationLatitude  float64 `json:"destination_latitude"`
	DestinationLongitude float64 `json:"destination_longitude"`
	DestinationAddress   string  `json:"destination_address"`
	PaymentMethod        string  `json:"payment_method"` // cash | wallet | card | bank_transfer
}

// ----- Handler: POST /rides -----

func (handler *RideHTTPHandler) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	// generate a context with request ID
	ctx := handler.withReqID(r.Context(), r)

	var req createRideRequest
	if !handler.decodeStrict(ctx, w, r, &req) {
		return
	}

	// obtain the JWT claims
	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	// fill or verify user_id against the token subject
	sub := strings.TrimSpace(claims.Subject)
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = sub
	} else if req.UserID != sub {
		handler.httpError(ctx, w, http.StatusForbidden, "user_id does not match token subject", errors.New("user/token mismatch"))
		return
	}

	// validate the payment method
	method, err := payment.ParseMethod(req.PaymentMethod)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "payment_method must be one of: cash, wallet, card, bank_transfer", err)
		return
	}

	// map to service DTO defined in ports
	in := ports.CreateRideInput{
		UserID: strings.TrimSpace(req.UserID),
		Pickup: ports.GeoPoint{
			Latitude:  req.PickupLatitude,
			Longitude: req.PickupLongitude,
			Address:   strings.TrimSpace(req.PickupAddress),
		},
		Destination: ports.GeoPoint{
			Latitude:  req.DestinationLatitude,
			Longitude: req.DestinationLongitude,
			Address:   strings.TrimSpace(req.DestinationAddress),
		},
		PaymentMethod: method.String(),
	}

	// bound service call
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.CreateRide(ctxWithTimeout, in)
	if err != nil {
		// distinguish DB failures from validation errors
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "database error", err)
			return
		}
		handler.httpError(ctxWithTimeout, w, http.StatusBadRequest, err.Error(), err)
		return
	}
	ctxWithTimeout = handler.logger.WithRideID(ctxWithTimeout, res.RideID)

	handler.jsonResponse(ctxWithTimeout, w, http.StatusCreated, res)
}

// ----- Handler: GET /rides -----

// handleListRides lists the caller's rides, newest first. Admins may pass
// ?user_id= to inspect another user's rides.
func (handler *RideHTTPHandler) handleListRides(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	userID := strings.TrimSpace(claims.Subject)
	if requested := strings.TrimSpace(r.URL.Query().Get("user_id")); requested != "" && requested != userID {
		if claims.Role != user.RoleAdmin {
			handler.httpError(ctx, w, http.StatusForbidden, "user_id does not match token subject", errors.New("user/token mismatch"))
			return
		}
		userID = requested
	}

	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			handler.httpError(ctx, w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	views, err := handler.svc.ListUserRides(ctxWithTimeout, userID, limit)
	if err != nil {
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to list rides", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"user_id": userID,
		"rides":   views,
	})
}
