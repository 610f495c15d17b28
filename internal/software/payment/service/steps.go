package service

import (
	"context"
	"errors"
	"fmt"

	"ridebook/internal/domain/payment"
	"ridebook/internal/domain/ride"
	redisstore "ridebook/internal/general/redis"
)

// sagaSteps builds the step sequence for one payment. The order is fixed:
//
//	validate_payment_details -> reserve_funds -> charge_provider
//	-> update_ride_payment_status -> emit_receipt
//
// Reservation and charge are split so money held for a ride is released when
// the charge fails, never silently kept.
func (service *paymentService) sagaSteps(p *payment.Payment) []sagaStep {
	provider := service.providers[p.Method]

	return []sagaStep{
		{
			Name:    "validate_payment_details",
			Forward: service.stepValidate,
			// nothing to undo for a pure validation
		},
		{
			Name:       "reserve_funds",
			Forward:    service.stepReserveFunds,
			Compensate: service.stepReleaseFunds,
		},
		{
			Name: "charge_provider",
			Forward: func(ctx context.Context, p *payment.Payment) error {
				return service.stepCharge(ctx, p, provider)
			},
			Compensate: func(ctx context.Context, p *payment.Payment) error {
				return service.stepRefundCharge(ctx, p, provider)
			},
		},
		{
			Name:       "update_ride_payment_status",
			Forward:    service.stepMarkRidePaid,
			Compensate: service.stepRevertRidePayment,
		},
		{
			Name:    "emit_receipt",
			Forward: service.stepEmitReceipt,
			// a published receipt cannot be unsent; downstream consumers
			// reconcile against payment.failed instead
		},
	}
}

// stepValidate re-checks the payment against the domain rules. Anything wrong
// here can never be fixed by retrying.
func (service *paymentService) stepValidate(ctx context.Context, p *payment.Payment) error {
	if p.Amount <= 0 {
		return nonRetryable(payment.ErrAmountNotPositive)
	}
	if !p.Method.Valid() {
		return nonRetryable(payment.ErrInvalidMethod)
	}
	if _, ok := service.providers[p.Method]; !ok {
		return nonRetryable(fmt.Errorf("no provider for method %s", p.Method))
	}

	// the ride must exist and not already be paid
	return service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		r, err := service.rideRepo.GetByID(txCtx, p.RideID)
		if err != nil {
			if errors.Is(err, ride.ErrRideNotFound) {
				// the booking event may have outrun the ride insert; retry
				return fmt.Errorf("ride %s not found yet: %w", p.RideID, err)
			}
			return err
		}
		if r.Payment.Status == ride.PaymentCompleted {
			return nonRetryable(payment.ErrDuplicatePayment)
		}
		return nil
	})
}

// stepReserveFunds places a hold for wallet payments. Other methods have
// nothing to reserve on our side. Fees are carved out of the amount, so the
// hold covers exactly what the charge captures and what compensation credits
// back.
func (service *paymentService) stepReserveFunds(ctx context.Context, p *payment.Payment) error {
	if p.Method != payment.MethodWallet {
		return nil
	}

	err := service.wallet.Reserve(ctx, p.UserID, p.SagaID, p.Amount)
	if err != nil {
		if errors.Is(err, redisstore.ErrInsufficientFunds) {
			return nonRetryable(err)
		}
		return err
	}
	return nil
}

// stepReleaseFunds returns the hold to the wallet. Releasing an already
// released or captured hold is a no-op.
func (service *paymentService) stepReleaseFunds(ctx context.Context, p *payment.Payment) error {
	if p.Method != payment.MethodWallet {
		return nil
	}
	return service.wallet.Release(ctx, p.UserID, p.SagaID)
}

// stepCharge runs the actual money movement through the method's provider
// and records the provider transaction id on the aggregate.
func (service *paymentService) stepCharge(ctx context.Context, p *payment.Payment, provider Provider) error {
	txID, err := provider.Charge(ctx, p)
	if err != nil {
		return err
	}
	p.TransactionID = txID
	p.Provider = provider.Name()
	return nil
}

// stepRefundCharge undoes a successful charge during compensation.
func (service *paymentService) stepRefundCharge(ctx context.Context, p *payment.Payment, provider Provider) error {
	if p.TransactionID == "" {
		return nil
	}
	return provider.Refund(ctx, p, p.Amount, "saga_compensation")
}

// stepMarkRidePaid writes the payment outcome onto the ride row. Both
// services share the schema, so this is a plain transactional update rather
// than a cross-service call.
func (service *paymentService) stepMarkRidePaid(ctx context.Context, p *payment.Payment) error {
	return service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.rideRepo.SetPaymentStatus(txCtx, p.RideID, ride.PaymentCompleted, p.TransactionID)
	})
}

// stepRevertRidePayment puts the ride's payment sub-state back to pending so
// the ride stays collectible for the retry.
func (service *paymentService) stepRevertRidePayment(ctx context.Context, p *payment.Payment) error {
	return service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.rideRepo.SetPaymentStatus(txCtx, p.RideID, ride.PaymentPending, "")
	})
}

// stepEmitReceipt publishes the receipt notification for downstream
// consumers (invoicing, notifications).
func (service *paymentService) stepEmitReceipt(ctx context.Context, p *payment.Payment) error {
	return service.publishReceipt(ctx, p)
}
