package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ridebook/internal/domain/user"
	"ridebook/internal/general/jwt"
)

// --- Request DTO (HTTP boundary) ---

type cancelRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ----- Handler: POST /rides/{ride_id}/cancel -----

func (handler *RideHTTPHandler) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "ride_id is required", nil)
		return
	}
	ctx = handler.logger.WithRideID(ctx, rideID)

	var req cancelRideRequest
	if !handler.decodeStrict(ctx, w, r, &req) {
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	cancelledBy := cancellingParty(claims)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.CancelRide(ctxWithTimeout, rideID, cancelledBy, strings.TrimSpace(req.Reason))
	if err != nil {
		handler.transitionError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// cancellingParty maps the token role onto the recorded cancelling side.
func cancellingParty(claims *jwt.Claims) string {
	switch claims.Role {
	case user.RoleDriver:
		return "driver"
	case user.RoleAdmin:
		return "system"
	default:
		return "user"
	}
}
