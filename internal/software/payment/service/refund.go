package service

import (
	"context"
	"fmt"
	"time"

	"ridebook/internal/domain/payment"
	"ridebook/internal/domain/ride"
	"ridebook/internal/general/contracts"
	"ridebook/internal/ports"
)

// RefundPayment applies a full or partial refund to a completed payment. The
// payment row is locked for the whole operation, so concurrent refunds on the
// same payment serialize and each request is validated against the cumulative
// total the previous one left behind.
func (service *paymentService) RefundPayment(ctx context.Context, in ports.RefundInput) (ports.RefundResult, error) {
	ctx = service.logger.WithPaymentID(ctx, in.PaymentID)
	rules := service.refundRules()
	now := time.Now().UTC()

	var p *payment.Payment
	var refundedNow int64

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		p, err = service.payRepo.GetForUpdate(txCtx, in.PaymentID)
		if err != nil {
			return err
		}

		amount := in.Amount
		if amount == 0 {
			amount = p.RefundableAmount(rules)
		}

		// the window is anchored to the saga completion; UpdatedAt moves on
		// every write and would re-open the window after each partial refund
		completedAt := p.UpdatedAt
		if p.CompletedAt != nil {
			completedAt = *p.CompletedAt
		}
		if err := p.ValidateRefund(amount, rules, completedAt, now); err != nil {
			return err
		}

		// reverse the money first; if the provider rejects, nothing changes
		provider, ok := service.providers[p.Method]
		if !ok {
			return fmt.Errorf("no provider for method %s", p.Method)
		}
		if err := provider.Refund(txCtx, p, amount, in.Reason); err != nil {
			return fmt.Errorf("provider refund: %w", err)
		}

		p.ApplyRefund(amount, in.Reason, now)
		refundedNow = amount

		if err := service.payRepo.Save(txCtx, p); err != nil {
			return err
		}

		// a full refund releases the ride's paid marker
		if p.Refund.Status == "full" {
			if err := service.rideRepo.SetPaymentStatus(txCtx, p.RideID, ride.PaymentPending, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "refund_failed", "Refund rejected", err, map[string]any{
			"amount": in.Amount,
		})
		return ports.RefundResult{}, err
	}

	service.logger.Info(ctx, "payment_refunded", "Refund applied", map[string]any{
		"ride_id":        p.RideID,
		"refunded_now":   refundedNow,
		"refunded_total": p.Refund.Amount,
		"refund_status":  p.Refund.Status,
	})

	msg := contracts.PaymentRefunded{
		PaymentID:     p.ID,
		RideID:        p.RideID,
		RefundedNow:   refundedNow,
		RefundedTotal: p.Refund.Amount,
		RefundStatus:  p.Refund.Status,
		Reason:        in.Reason,
		Envelope: contracts.Envelope{
			Producer: "payment-service",
			SentAt:   time.Now().UTC(),
		},
	}
	if err := service.publishJSON(ctx, contracts.ExchangePaymentTopic, contracts.RoutePaymentRefunded, msg); err != nil {
		service.logger.Error(ctx, "refund_publish_failed", "Failed to publish payment.refunded", err, nil)
	}

	return ports.RefundResult{
		PaymentID:     p.ID,
		RefundedNow:   refundedNow,
		RefundedTotal: p.Refund.Amount,
		RefundStatus:  p.Refund.Status,
		PaymentStatus: p.Status.String(),
	}, nil
}
