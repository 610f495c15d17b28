package service

import (
	"context"
	"fmt"

	"ridebook/internal/domain/payment"
	"ridebook/internal/general/config"
	"ridebook/internal/ports"

	"github.com/google/uuid"
)

// Provider moves money for one payment method. Charge returns the provider
// transaction id; Refund reverses up to amount of a previous charge.
type Provider interface {
	Name() string
	Charge(ctx context.Context, p *payment.Payment) (string, error)
	Refund(ctx context.Context, p *payment.Payment, amount int64, reason string) error
}

// defaultProviders wires the per-method provider strategies. Card payments go
// through Stripe when a key is configured and fall back to the simulated
// provider otherwise, which keeps local development broker-complete without
// real credentials.
func defaultProviders(cfg *config.Config, wallet ports.WalletStore) map[payment.Method]Provider {
	var card Provider = &simulatedProvider{name: "card_sim"}
	if cfg.Payments.StripeSecretKey != "" {
		card = newStripeProvider(cfg.Payments.StripeSecretKey)
	}

	return map[payment.Method]Provider{
		payment.MethodCash:         &cashProvider{},
		payment.MethodWallet:       &walletProvider{wallet: wallet},
		payment.MethodCard:         card,
		payment.MethodBankTransfer: &simulatedProvider{name: "bank_transfer"},
	}
}

// --- cash ---

// cashProvider settles outside the system; the charge only mints a
// transaction id for the audit trail.
type cashProvider struct{}

func (c *cashProvider) Name() string { return "cash" }

func (c *cashProvider) Charge(ctx context.Context, p *payment.Payment) (string, error) {
	return "cash_" + uuid.NewString(), nil
}

func (c *cashProvider) Refund(ctx context.Context, p *payment.Payment, amount int64, reason string) error {
	// cash refunds are handled at the counter; nothing to reverse here
	return nil
}

// --- wallet ---

// walletProvider captures the hold placed by the reserve_funds step.
type walletProvider struct {
	wallet ports.WalletStore
}

func (w *walletProvider) Name() string { return "wallet" }

func (w *walletProvider) Charge(ctx context.Context, p *payment.Payment) (string, error) {
	if err := w.wallet.Capture(ctx, p.UserID, p.SagaID); err != nil {
		return "", fmt.Errorf("capture wallet hold: %w", err)
	}
	return "wallet_" + uuid.NewString(), nil
}

func (w *walletProvider) Refund(ctx context.Context, p *payment.Payment, amount int64, reason string) error {
	_, err := w.wallet.Credit(ctx, p.UserID, amount)
	return err
}

// --- simulated ---

// simulatedProvider accepts every charge. It stands in for gateways we have
// no sandbox for (bank transfers) and for card payments without a Stripe key.
type simulatedProvider struct {
	name string
}

func (s *simulatedProvider) Name() string { return s.name }

func (s *simulatedProvider) Charge(ctx context.Context, p *payment.Payment) (string, error) {
	return s.name + "_" + uuid.NewString(), nil
}

func (s *simulatedProvider) Refund(ctx context.Context, p *payment.Payment, amount int64, reason string) error {
	return nil
}
