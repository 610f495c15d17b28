package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ridebook/internal/domain/payment"
	"ridebook/internal/domain/ride"
	"ridebook/internal/ports"
)

func refundFixture(t *testing.T) (*sagaFixture, *payment.Payment) {
	t.Helper()
	f, p := newSagaFixture(t, payment.MethodCash)
	f.svc.cfg.Payments.AllowRefund = true
	f.svc.cfg.Payments.RefundWindowHours = 72

	completed := time.Now().UTC().Add(-time.Hour)
	p.Status = payment.StatusCompleted
	p.CompletedAt = &completed
	p.UpdatedAt = completed
	f.payRepo.byID = map[string]*payment.Payment{p.ID: p}
	return f, p
}

func TestRefundPaymentPartial(t *testing.T) {
	f, p := refundFixture(t)

	res, err := f.svc.RefundPayment(context.Background(), ports.RefundInput{
		PaymentID: p.ID,
		Amount:    40000,
		Reason:    "overcharge",
	})
	if err != nil {
		t.Fatalf("RefundPayment: %v", err)
	}

	if res.RefundedNow != 40000 || res.RefundedTotal != 40000 || res.RefundStatus != "partial" {
		t.Errorf("result = %+v", res)
	}
	if f.provider.refunds != 1 {
		t.Errorf("provider refunds = %d, want 1", f.provider.refunds)
	}
	// a partial refund leaves the ride's paid marker alone
	if len(f.rideRepo.statusCalls) != 0 {
		t.Errorf("partial refund must not touch the ride, got %v", f.rideRepo.statusCalls)
	}
	if !hasKey(f.pub.routingKeys(), "payment.refunded") {
		t.Errorf("published %v, want payment.refunded", f.pub.routingKeys())
	}
}

func TestRefundPaymentFullDefaultsToRemainder(t *testing.T) {
	f, p := refundFixture(t)
	p.Refund.Amount = 30000
	p.Refund.Status = "partial"

	// amount 0 refunds whatever is left
	res, err := f.svc.RefundPayment(context.Background(), ports.RefundInput{PaymentID: p.ID})
	if err != nil {
		t.Fatalf("RefundPayment: %v", err)
	}

	if res.RefundedNow != 70000 || res.RefundedTotal != 100000 || res.RefundStatus != "full" {
		t.Errorf("result = %+v", res)
	}
	if res.PaymentStatus != "refunded" {
		t.Errorf("payment status = %s, want refunded", res.PaymentStatus)
	}

	// a full refund releases the ride's paid marker
	if len(f.rideRepo.statusCalls) != 1 || f.rideRepo.statusCalls[0].status != ride.PaymentPending {
		t.Errorf("ride status calls = %v, want one revert to pending", f.rideRepo.statusCalls)
	}
}

func TestRefundPaymentRejectsOverRefund(t *testing.T) {
	f, p := refundFixture(t)
	p.Refund.Amount = 90000

	_, err := f.svc.RefundPayment(context.Background(), ports.RefundInput{
		PaymentID: p.ID,
		Amount:    20000,
	})
	if !errors.Is(err, payment.ErrRefundExceedsAmount) {
		t.Fatalf("want ErrRefundExceedsAmount, got %v", err)
	}
	if f.provider.refunds != 0 {
		t.Error("rejected refund must never reach the provider")
	}
	if p.Refund.Amount != 90000 {
		t.Errorf("rejected refund must not change state, got %d", p.Refund.Amount)
	}
}

func TestRefundPaymentWindowClosed(t *testing.T) {
	f, p := refundFixture(t)
	completed := time.Now().UTC().Add(-100 * time.Hour)
	p.CompletedAt = &completed

	_, err := f.svc.RefundPayment(context.Background(), ports.RefundInput{PaymentID: p.ID, Amount: 1000})
	if !errors.Is(err, payment.ErrRefundWindowClosed) {
		t.Fatalf("want ErrRefundWindowClosed, got %v", err)
	}
}

func TestRefundWindowAnchoredToCompletion(t *testing.T) {
	f, p := refundFixture(t)

	// a partial refund just bumped UpdatedAt; the payment itself completed
	// long outside the window and must stay unrefundable
	completed := time.Now().UTC().Add(-100 * time.Hour)
	p.CompletedAt = &completed
	p.Refund.Amount = 30000
	p.Refund.Status = "partial"
	p.UpdatedAt = time.Now().UTC()

	_, err := f.svc.RefundPayment(context.Background(), ports.RefundInput{PaymentID: p.ID, Amount: 1000})
	if !errors.Is(err, payment.ErrRefundWindowClosed) {
		t.Fatalf("want ErrRefundWindowClosed, got %v", err)
	}
	if f.provider.refunds != 0 {
		t.Error("closed window must never reach the provider")
	}
}

func TestRefundPaymentUnknownID(t *testing.T) {
	f, _ := refundFixture(t)

	_, err := f.svc.RefundPayment(context.Background(), ports.RefundInput{PaymentID: "nope", Amount: 1000})
	if !errors.Is(err, payment.ErrPaymentNotFound) {
		t.Fatalf("want ErrPaymentNotFound, got %v", err)
	}
}
