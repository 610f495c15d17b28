package payment

import (
	"errors"
	"time"
)

// RefundRules are the business rules governing refunds, loaded from config.
type RefundRules struct {
	AllowRefund       bool
	RefundWindowHours int
	MaxRefundAmount   int64 // 0 means unlimited
}

var (
	ErrRefundsDisabled     = errors.New("refunds are disabled")
	ErrRefundWindowClosed  = errors.New("refund window has closed")
	ErrRefundNotCompleted  = errors.New("only completed or refunded payments can be refunded")
	ErrRefundExceedsAmount = errors.New("refund exceeds refundable amount")
	ErrRefundNotPositive   = errors.New("refund amount must be positive")
)

// RefundableAmount is what may still be refunded: the remainder after prior
// refunds, capped by MaxRefundAmount when configured.
func (p *Payment) RefundableAmount(rules RefundRules) int64 {
	remaining := p.Amount - p.Refund.Amount
	if remaining < 0 {
		remaining = 0
	}
	if rules.MaxRefundAmount > 0 && remaining > rules.MaxRefundAmount {
		remaining = rules.MaxRefundAmount
	}
	return remaining
}

// ValidateRefund checks a refund request against the business rules. A request
// exceeding the refundable amount is rejected outright, never partially
// satisfied.
func (p *Payment) ValidateRefund(amount int64, rules RefundRules, completedAt time.Time, now time.Time) error {
	if !rules.AllowRefund {
		return ErrRefundsDisabled
	}
	if amount <= 0 {
		return ErrRefundNotPositive
	}
	if p.Status != StatusCompleted && p.Status != StatusRefunded {
		return ErrRefundNotCompleted
	}
	if rules.RefundWindowHours > 0 {
		deadline := completedAt.Add(time.Duration(rules.RefundWindowHours) * time.Hour)
		if now.After(deadline) {
			return ErrRefundWindowClosed
		}
	}
	if amount > p.RefundableAmount(rules) {
		return ErrRefundExceedsAmount
	}
	return nil
}
