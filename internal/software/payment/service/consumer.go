package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridebook/internal/domain/payment"
	"ridebook/internal/general/contracts"
	"ridebook/internal/general/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RunBackgroundConsumers starts the booking consumer of the payment service.
// The loop restarts with a delay when its channel dies and exits when ctx is
// cancelled.
func (service *paymentService) RunBackgroundConsumers(ctx context.Context) {
	go func() {
		for {
			err := service.rabbitmq.Consume(ctx, contracts.QueuePaymentBookings, "payment-bookings", 1, service.handleBookingCreated)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				service.logger.Error(ctx, "consumer_stopped", "Consumer stopped; restarting", err, map[string]any{
					"queue": contracts.QueuePaymentBookings,
				})
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
		}
	}()
}

// handleBookingCreated ingests booking.created: it creates exactly one
// payment per ride and runs the saga for it. Redelivered or duplicated
// booking events collapse on the unique ride key; the duplicate is simply
// acked and the original saga run (or its retry schedule) stands.
func (service *paymentService) handleBookingCreated(ctx context.Context, d amqp.Delivery) error {
	booking, err := contracts.NormalizeBookingCreated(d.Body)
	if err != nil {
		return rabbitmq.Permanent(fmt.Errorf("normalize booking event: %w", err))
	}

	ctx = service.logger.WithRequestID(ctx, booking.CorrelationID)
	ctx = service.logger.WithRideID(ctx, booking.RideID)

	method, err := payment.ParseMethod(booking.PaymentMethod)
	if err != nil {
		// an unknown method defaults to cash rather than poisoning the ride
		service.logger.Info(ctx, "payment_method_defaulted", "Unknown payment method on booking; defaulting to cash", map[string]any{
			"payment_method": booking.PaymentMethod,
		})
		method = payment.MethodCash
	}

	p, err := payment.NewPayment(booking.RideID, booking.UserID, booking.Amount, method)
	if err != nil {
		// structurally invalid bookings can never succeed on redelivery
		return rabbitmq.Permanent(fmt.Errorf("build payment: %w", err))
	}

	var created bool
	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = service.payRepo.CreatePayment(txCtx, p)
		return err
	})
	if err != nil {
		return err
	}

	if !created {
		service.logger.Info(ctx, "booking_event_deduplicated", "Payment already exists for ride; ignoring redelivery", nil)
		return nil
	}

	service.logger.Info(ctx, "payment_created", "Payment created for booking", map[string]any{
		"payment_id": p.ID,
		"amount":     p.Amount,
		"method":     p.Method.String(),
	})

	// run the saga inline; a saga failure is not a consumer failure, the
	// outcome (including the retry schedule) is already persisted
	if err := service.runSaga(ctx, p); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		service.logger.Error(ctx, "saga_failed", "Payment saga failed", err, map[string]any{
			"payment_id": p.ID,
		})
	}
	return nil
}

// RunRetrySweeper periodically re-runs failed sagas whose backoff elapsed.
// Schedules live in the payments table, so pending retries survive restarts.
func (service *paymentService) RunRetrySweeper(ctx context.Context) {
	interval := time.Duration(service.cfg.Payments.RetrySweepSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	service.logger.Info(ctx, "retry_sweeper_started", "Payment retry sweeper running", map[string]any{
		"interval_s": service.cfg.Payments.RetrySweepSeconds,
	})

	for {
		select {
		case <-ctx.Done():
			service.logger.Info(ctx, "retry_sweeper_stopped", "Payment retry sweeper stopped", nil)
			return
		case <-ticker.C:
			service.retryDue(ctx)
			service.reclaimStalled(ctx)
		}
	}
}

// staleProcessingAfter is how long a payment may sit in processing before the
// sweeper treats its saga run as crashed. Generous compared to a normal run,
// which finishes in seconds.
const staleProcessingAfter = 10 * time.Minute

// retryDue picks up every due payment and re-runs its saga.
func (service *paymentService) retryDue(ctx context.Context) {
	now := time.Now().UTC()

	var due []*payment.Payment
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		due, err = service.payRepo.ListDueRetries(txCtx, now, 50)
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "retry_sweep_failed", "Failed to list due retries", err, nil)
		return
	}

	for _, p := range due {
		pCtx := service.logger.WithPaymentID(ctx, p.ID)
		pCtx = service.logger.WithRideID(pCtx, p.RideID)

		service.logger.Info(pCtx, "payment_retry_started", "Retrying failed payment saga", map[string]any{
			"attempt": p.RetryCount + 1,
		})

		if err := service.runSaga(pCtx, p); err != nil {
			service.logger.Error(pCtx, "payment_retry_failed", "Payment saga retry failed", err, nil)
		}
	}
}

// reclaimStalled re-runs sagas whose process crashed mid-flight: payments
// still marked processing long after their last persisted step. Booking
// redelivery dedups on the ride key, so nothing else would ever pick these
// up. runSaga resumes from the persisted progress and skips completed steps.
func (service *paymentService) reclaimStalled(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-staleProcessingAfter)

	var stalled []*payment.Payment
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		stalled, err = service.payRepo.ListStaleProcessing(txCtx, cutoff, 50)
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "reclaim_sweep_failed", "Failed to list stalled payments", err, nil)
		return
	}

	for _, p := range stalled {
		pCtx := service.logger.WithPaymentID(ctx, p.ID)
		pCtx = service.logger.WithRideID(pCtx, p.RideID)

		service.logger.Info(pCtx, "payment_reclaim_started", "Resuming stalled payment saga", map[string]any{
			"saga_status": string(p.SagaStatus),
		})

		if err := service.runSaga(pCtx, p); err != nil {
			service.logger.Error(pCtx, "payment_reclaim_failed", "Stalled payment saga failed", err, nil)
		}
	}
}
