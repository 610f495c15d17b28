package service

import (
	"context"
	"encoding/json"
	"time"

	"ridebook/internal/domain/payment"
	"ridebook/internal/general/contracts"
	"ridebook/internal/ports"
)

// GetPayment serves the payment read-model by payment id.
func (service *paymentService) GetPayment(ctx context.Context, paymentID string) (ports.PaymentView, error) {
	ctx = service.logger.WithPaymentID(ctx, paymentID)

	var p *payment.Payment
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		p, err = service.payRepo.GetByID(txCtx, paymentID)
		return err
	})
	if err != nil {
		return ports.PaymentView{}, err
	}
	return paymentToView(p), nil
}

// GetPaymentByRide serves the payment read-model by ride id.
func (service *paymentService) GetPaymentByRide(ctx context.Context, rideID string) (ports.PaymentView, error) {
	ctx = service.logger.WithRideID(ctx, rideID)

	var p *payment.Payment
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		p, err = service.payRepo.GetByRideID(txCtx, rideID)
		return err
	})
	if err != nil {
		return ports.PaymentView{}, err
	}
	return paymentToView(p), nil
}

func paymentToView(p *payment.Payment) ports.PaymentView {
	steps := make([]ports.SagaStepView, len(p.SagaSteps))
	for i, s := range p.SagaSteps {
		steps[i] = ports.SagaStepView{
			Name:          s.Name,
			Status:        string(s.Status),
			ExecutedAt:    s.ExecutedAt,
			CompensatedAt: s.CompensatedAt,
			Error:         s.Error,
		}
	}

	return ports.PaymentView{
		PaymentID:     p.ID,
		RideID:        p.RideID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Method:        p.Method.String(),
		Status:        p.Status.String(),
		PlatformFee:   p.Fees.PlatformFee,
		ProviderFee:   p.Fees.ProviderFee,
		Tax:           p.Fees.Tax,
		TotalFees:     p.Fees.TotalFees,
		TransactionID: p.TransactionID,
		SagaID:        p.SagaID,
		SagaStatus:    string(p.SagaStatus),
		Steps:         steps,
		RefundedTotal: p.Refund.Amount,
		RefundStatus:  p.Refund.Status,
	}
}

// publishJSON marshals and publishes a message to the given exchange.
func (service *paymentService) publishJSON(ctx context.Context, exchange, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := service.pub.Publish(exchange, routingKey, body); err != nil {
		return err
	}

	service.logger.Info(ctx, "event_published", "Published event to RabbitMQ", map[string]any{
		"exchange":    exchange,
		"routing_key": routingKey,
	})
	return nil
}

// publishPaymentCompleted announces a successful saga to the payment topic.
func (service *paymentService) publishPaymentCompleted(ctx context.Context, p *payment.Payment) {
	msg := contracts.PaymentCompleted{
		PaymentID:     p.ID,
		RideID:        p.RideID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		Method:        p.Method.String(),
		TransactionID: p.TransactionID,
		Envelope: contracts.Envelope{
			Producer: "payment-service",
			SentAt:   time.Now().UTC(),
		},
	}
	if err := service.publishJSON(ctx, contracts.ExchangePaymentTopic, contracts.RoutePaymentCompleted, msg); err != nil {
		service.logger.Error(ctx, "payment_event_publish_failed", "Failed to publish payment.completed", err, nil)
	}
}

// publishPaymentFailed announces a failed saga, flagging whether a retry is
// still scheduled.
func (service *paymentService) publishPaymentFailed(ctx context.Context, p *payment.Payment, reason string, retryable bool) {
	msg := contracts.PaymentFailed{
		PaymentID: p.ID,
		RideID:    p.RideID,
		Reason:    reason,
		Retryable: retryable,
		Envelope: contracts.Envelope{
			Producer: "payment-service",
			SentAt:   time.Now().UTC(),
		},
	}
	if err := service.publishJSON(ctx, contracts.ExchangePaymentTopic, contracts.RoutePaymentFailed, msg); err != nil {
		service.logger.Error(ctx, "payment_event_publish_failed", "Failed to publish payment.failed", err, nil)
	}
}

// publishReceipt emits the receipt document produced by the saga's last step.
func (service *paymentService) publishReceipt(ctx context.Context, p *payment.Payment) error {
	msg := contracts.PaymentReceipt{
		PaymentID:     p.ID,
		RideID:        p.RideID,
		UserID:        p.UserID,
		Amount:        p.Amount,
		PlatformFee:   p.Fees.PlatformFee,
		ProviderFee:   p.Fees.ProviderFee,
		Tax:           p.Fees.Tax,
		TotalFees:     p.Fees.TotalFees,
		Method:        p.Method.String(),
		Provider:      p.Provider,
		TransactionID: p.TransactionID,
		Envelope: contracts.Envelope{
			Producer: "payment-service",
			SentAt:   time.Now().UTC(),
		},
	}
	return service.publishJSON(ctx, contracts.ExchangePaymentTopic, contracts.RoutePaymentReceipt, msg)
}
