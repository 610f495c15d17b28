package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"ridebook/internal/domain/payment"
	"ridebook/internal/domain/user"
	"ridebook/internal/general/jwt"
	"ridebook/internal/general/logger"
	"ridebook/internal/ports"
)

// PaymentHTTPHandler adapts HTTP requests to the PaymentService.
type PaymentHTTPHandler struct {
	svc    ports.PaymentService
	logger *logger.Logger
	auth   *jwt.Manager
}

// NewPaymentHTTPHandler wires an HTTP handler around the PaymentService.
func NewPaymentHTTPHandler(svc ports.PaymentService, logger *logger.Logger, auth *jwt.Manager) *PaymentHTTPHandler {
	return &PaymentHTTPHandler{svc: svc, logger: logger, auth: auth}
}

// RegisterRoutes mounts payment endpoints on the provided mux.
func (handler *PaymentHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /payments/{payment_id}",
		jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger, user.RoleAdmin)(handler.handleGetPayment),
	)
	mux.HandleFunc("GET /rides/{ride_id}/payment",
		jwt.AuthMiddlewareFunc(handler.auth, user.RolePassenger, user.RoleAdmin)(handler.handleGetPaymentByRide),
	)
	mux.HandleFunc("POST /payments/{payment_id}/refund",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleAdmin)(handler.handleRefund),
	)

	mux.HandleFunc("GET /payments/health", handler.handleHealth)
}

// handleHealth reports liveness.
func (handler *PaymentHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// ----- read endpoints -----

func (handler *PaymentHTTPHandler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	paymentID := strings.TrimSpace(r.PathValue("payment_id"))
	if paymentID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "payment_id is required", nil)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.GetPayment(ctxWithTimeout, paymentID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			handler.httpError(ctxWithTimeout, w, http.StatusNotFound, "payment not found", err)
			return
		}
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to load payment", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

func (handler *PaymentHTTPHandler) handleGetPaymentByRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rideID := strings.TrimSpace(r.PathValue("ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "ride_id is required", nil)
		return
	}
	ctx = handler.logger.WithRideID(ctx, rideID)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.GetPaymentByRide(ctxWithTimeout, rideID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			handler.httpError(ctxWithTimeout, w, http.StatusNotFound, "no payment for ride", err)
			return
		}
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to load payment", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// ----- general helpers -----

// decodeStrict enforces JSON content type, bounds the body, and rejects
// unknown fields.
func (handler *PaymentHTTPHandler) decodeStrict(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return false
	}
	return true
}

func (handler *PaymentHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *PaymentHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusUnsupportedMediaType {
		action = "unsupported_media_type"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *PaymentHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
