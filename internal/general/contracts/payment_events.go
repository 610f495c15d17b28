package contracts

// PaymentCompleted is published by the payment service when a saga finishes
// successfully. Routing key: "payment.completed" on ExchangePaymentTopic.
type PaymentCompleted struct {
	PaymentID     string `json:"payment_id"`
	RideID        string `json:"ride_id"`
	UserID        string `json:"user_id"`
	Amount        int64  `json:"amount"`
	Method        string `json:"method"`
	TransactionID string `json:"transaction_id"`
	Envelope
}

// PaymentFailed is published when a saga reaches the failed terminal status.
// Retryable is false once retries are exhausted or the failure is permanent.
// Routing key: "payment.failed" on ExchangePaymentTopic.
type PaymentFailed struct {
	PaymentID string `json:"payment_id"`
	RideID    string `json:"ride_id"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
	Envelope
}

// PaymentRefunded is published after a refund is applied.
// Routing key: "payment.refunded" on ExchangePaymentTopic.
type PaymentRefunded struct {
	PaymentID     string `json:"payment_id"`
	RideID        string `json:"ride_id"`
	RefundedNow   int64  `json:"refunded_now"`
	RefundedTotal int64  `json:"refunded_total"`
	RefundStatus  string `json:"refund_status"` // "partial" or "full"
	Reason        string `json:"reason,omitempty"`
	Envelope
}

// PaymentReceipt is the receipt document emitted by the saga's final step for
// invoicing and notification consumers.
// Routing key: "payment.receipt" on ExchangePaymentTopic.
type PaymentReceipt struct {
	PaymentID     string `json:"payment_id"`
	RideID        string `json:"ride_id"`
	UserID        string `json:"user_id"`
	Amount        int64  `json:"amount"`
	PlatformFee   int64  `json:"platform_fee"`
	ProviderFee   int64  `json:"provider_fee"`
	Tax           int64  `json:"tax"`
	TotalFees     int64  `json:"total_fees"`
	Method        string `json:"method"`
	Provider      string `json:"provider"`
	TransactionID string `json:"transaction_id"`
	Envelope
}
