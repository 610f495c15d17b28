package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ridebook/internal/domain/payment"
	"ridebook/internal/ports"
)

// --- Request DTO (HTTP boundary) ---

type refundRequest struct {
	Amount int64  `json:"amount,omitempty"` // 0 refunds the remaining refundable amount
	Reason string `json:"reason,omitempty"`
}

// ----- Handler: POST /payments/{payment_id}/refund -----

func (handler *PaymentHTTPHandler) handleRefund(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	paymentID := strings.TrimSpace(r.PathValue("payment_id"))
	if paymentID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "payment_id is required", nil)
		return
	}

	var req refundRequest
	if !handler.decodeStrict(ctx, w, r, &req) {
		return
	}

	if req.Amount < 0 {
		handler.httpError(ctx, w, http.StatusBadRequest, "amount must not be negative", nil)
		return
	}

	in := ports.RefundInput{
		PaymentID: paymentID,
		Amount:    req.Amount,
		Reason:    strings.TrimSpace(req.Reason),
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := handler.svc.RefundPayment(ctxWithTimeout, in)
	if err != nil {
		handler.refundError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// refundError maps refund failures onto HTTP statuses.
func (handler *PaymentHTTPHandler) refundError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payment.ErrPaymentNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "payment not found", err)
	case errors.Is(err, payment.ErrRefundsDisabled):
		handler.httpError(ctx, w, http.StatusForbidden, err.Error(), err)
	case errors.Is(err, payment.ErrRefundWindowClosed),
		errors.Is(err, payment.ErrRefundNotCompleted),
		errors.Is(err, payment.ErrRefundExceedsAmount):
		handler.httpError(ctx, w, http.StatusConflict, err.Error(), err)
	case errors.Is(err, payment.ErrRefundNotPositive):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	default:
		handler.httpError(ctx, w, http.StatusInternalServerError, "refund failed", err)
	}
}
