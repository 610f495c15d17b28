package service

import (
	"context"
	"fmt"

	"ridebook/internal/domain/payment"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// stripeProvider charges cards through Stripe payment intents. Amounts are
// already integer minor units, which is exactly what the Stripe API expects.
type stripeProvider struct {
	client *client.API
}

func newStripeProvider(secretKey string) *stripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &stripeProvider{client: sc}
}

func (s *stripeProvider) Name() string { return "stripe" }

func (s *stripeProvider) Charge(ctx context.Context, p *payment.Payment) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		Confirm:  stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.AddMetadata("ride_id", p.RideID)
	params.AddMetadata("payment_id", p.ID)
	params.AddMetadata("saga_id", p.SagaID)

	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return "", fmt.Errorf("stripe payment intent %s not succeeded: %s", pi.ID, pi.Status)
	}

	return pi.ID, nil
}

func (s *stripeProvider) Refund(ctx context.Context, p *payment.Payment, amount int64, reason string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(p.TransactionID),
	}
	params.Context = ctx
	if amount > 0 && amount < p.Amount {
		params.Amount = stripe.Int64(amount)
	}
	params.AddMetadata("reason", reason)

	if _, err := s.client.Refunds.New(params); err != nil {
		return fmt.Errorf("stripe refund: %w", err)
	}
	return nil
}
