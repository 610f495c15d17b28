package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ridebook/internal/domain/payment"
)

// sagaStep is one tagged step of a saga run: a forward action and the
// compensation that undoes it. Compensations must be idempotent because a
// crashed compensation pass is re-run from scratch on retry.
type sagaStep struct {
	Name       string
	Forward    func(ctx context.Context, p *payment.Payment) error
	Compensate func(ctx context.Context, p *payment.Payment) error
}

// nonRetryableError marks a step failure that retrying can never fix
// (validation rejections, insufficient funds). The saga fails without
// scheduling a retry.
type nonRetryableError struct{ err error }

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

func nonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

func isNonRetryable(err error) bool {
	var e *nonRetryableError
	return errors.As(err, &e)
}

// runSaga executes the step sequence for p, persisting progress after every
// step so a crash resumes with an accurate audit trail. On a step failure the
// completed prefix is compensated in reverse order; compensation errors are
// logged and swallowed, never masking the original failure.
func (service *paymentService) runSaga(ctx context.Context, p *payment.Payment) error {
	ctx = service.logger.WithPaymentID(ctx, p.ID)
	ctx = service.logger.WithSagaID(ctx, p.SagaID)

	steps := service.sagaSteps(p)
	now := time.Now().UTC()

	// a reclaimed mid-flight run resumes from the persisted step progress so
	// already completed steps (the charge in particular) never re-execute;
	// everything else starts a fresh audit trail
	resuming := p.SagaStatus == payment.SagaExecuting && len(p.SagaSteps) == len(steps)

	p.Status = payment.StatusProcessing
	p.SagaStatus = payment.SagaExecuting
	if !resuming {
		p.SagaSteps = pendingStepRecords(steps)
	}
	p.UpdatedAt = now
	if err := service.savePayment(ctx, p); err != nil {
		return err
	}

	service.logger.Info(ctx, "saga_started", "Payment saga started", map[string]any{
		"ride_id": p.RideID,
		"method":  p.Method.String(),
		"amount":  p.Amount,
		"attempt": p.RetryCount + 1,
		"resumed": resuming,
	})

	for i, step := range steps {
		if resuming && p.SagaSteps[i].Status == payment.StepCompleted {
			continue
		}

		err := step.Forward(ctx, p)
		at := time.Now().UTC()

		if err == nil {
			p.SagaSteps[i].Status = payment.StepCompleted
			p.SagaSteps[i].ExecutedAt = &at
			p.UpdatedAt = at
			if saveErr := service.savePayment(ctx, p); saveErr != nil {
				return saveErr
			}
			service.logger.Info(ctx, "saga_step_completed", "Saga step completed", map[string]any{
				"step": step.Name,
			})
			continue
		}

		p.SagaSteps[i].Status = payment.StepFailed
		p.SagaSteps[i].Error = err.Error()
		p.SagaStatus = payment.SagaCompensating
		p.UpdatedAt = at
		if saveErr := service.savePayment(ctx, p); saveErr != nil {
			service.logger.Error(ctx, "saga_persist_failed", "Failed to persist saga failure", saveErr, nil)
		}

		service.logger.Error(ctx, "saga_step_failed", "Saga step failed; compensating", err, map[string]any{
			"step":            step.Name,
			"completed_steps": i,
		})

		service.compensate(ctx, p, steps, i)
		service.finishFailed(ctx, p, step.Name, err)
		return err
	}

	done := time.Now().UTC()
	p.Status = payment.StatusCompleted
	p.SagaStatus = payment.SagaCompleted
	p.NextRetryAt = nil
	p.CompletedAt = &done
	p.UpdatedAt = done
	if err := service.savePayment(ctx, p); err != nil {
		return err
	}

	service.logger.Info(ctx, "saga_completed", "Payment saga completed", map[string]any{
		"ride_id":        p.RideID,
		"transaction_id": p.TransactionID,
	})

	service.publishPaymentCompleted(ctx, p)
	return nil
}

// compensate undoes the completed prefix steps[0:failedIdx] in reverse order.
func (service *paymentService) compensate(ctx context.Context, p *payment.Payment, steps []sagaStep, failedIdx int) {
	for i := failedIdx - 1; i >= 0; i-- {
		step := steps[i]
		at := time.Now().UTC()

		if step.Compensate == nil {
			// nothing to undo; the step keeps its completed status so the
			// audit trail still shows it ran
			continue
		}

		if err := step.Compensate(ctx, p); err != nil {
			// swallowed: compensation failures must not mask the original
			// step failure, they only leave an audit trail
			service.logger.Error(ctx, "saga_compensation_failed", "Compensation failed", err, map[string]any{
				"step": step.Name,
			})
			p.SagaSteps[i].Error = err.Error()
			continue
		}

		p.SagaSteps[i].Status = payment.StepCompensated
		p.SagaSteps[i].CompensatedAt = &at
		service.logger.Info(ctx, "saga_step_compensated", "Saga step compensated", map[string]any{
			"step": step.Name,
		})
	}
}

// finishFailed records the terminal failure, schedules a retry when the
// failure is retryable and the budget allows, and publishes payment.failed.
func (service *paymentService) finishFailed(ctx context.Context, p *payment.Payment, failedStep string, cause error) {
	now := time.Now().UTC()

	p.Status = payment.StatusFailed
	p.SagaStatus = payment.SagaFailed
	p.UpdatedAt = now
	p.NextRetryAt = nil

	retryable := !isNonRetryable(cause) && p.RetryCount < service.cfg.Payments.MaxRetries
	if retryable {
		p.RetryCount++
		// exponential backoff: base * 2^(attempt-1)
		backoff := time.Duration(service.cfg.Payments.RetryBaseSeconds) * time.Second
		backoff *= time.Duration(math.Pow(2, float64(p.RetryCount-1)))
		next := now.Add(backoff)
		p.NextRetryAt = &next
	}

	if err := service.savePayment(ctx, p); err != nil {
		service.logger.Error(ctx, "saga_persist_failed", "Failed to persist saga outcome", err, nil)
	}

	reason := fmt.Sprintf("%s: %v", failedStep, cause)
	service.publishPaymentFailed(ctx, p, reason, retryable)
}

// pendingStepRecords seeds the persisted audit records for a fresh run.
func pendingStepRecords(steps []sagaStep) []payment.SagaStep {
	records := make([]payment.SagaStep, len(steps))
	for i, s := range steps {
		records[i] = payment.SagaStep{Name: s.Name, Status: payment.StepPending}
	}
	return records
}

// savePayment persists the aggregate in its own short transaction.
func (service *paymentService) savePayment(ctx context.Context, p *payment.Payment) error {
	return service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.payRepo.Save(txCtx, p)
	})
}
