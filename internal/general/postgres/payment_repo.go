package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ridebook/internal/domain/payment"
	"ridebook/internal/ports"

	"github.com/jackc/pgx/v5"
)

// PaymentRepo persists payments using pgx and plain SQL.
type PaymentRepo struct{}

// NewPaymentRepo constructs a new PaymentRepo.
func NewPaymentRepo() ports.PaymentRepository {
	return &PaymentRepo{}
}

const paymentColumns = `
	id, created_at, updated_at, ride_id, user_id,
	amount, method, provider, status,
	platform_fee, provider_fee, tax, total_fees,
	refund_amount, refund_reason, refund_status, transaction_id,
	saga_id, saga_status, saga_steps,
	retry_count, next_retry_at, completed_at`

// CreatePayment inserts the payment unless one already exists for the ride.
// The unique index on ride_id makes redelivered booking events collapse into
// a single payment: the second insert is a silent no-op and the method
// returns false.
func (repo *PaymentRepo) CreatePayment(ctx context.Context, p *payment.Payment) (bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return false, err
	}

	steps, err := json.Marshal(p.SagaSteps)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO payments (
			id, created_at, updated_at, ride_id, user_id,
			amount, method, provider, status,
			platform_fee, provider_fee, tax, total_fees,
			saga_id, saga_status, saga_steps, retry_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16::jsonb, $17)
		ON CONFLICT (ride_id) DO NOTHING
	`,
		p.ID, p.CreatedAt, p.UpdatedAt, p.RideID, p.UserID,
		p.Amount, p.Method.String(), p.Provider, p.Status.String(),
		p.Fees.PlatformFee, p.Fees.ProviderFee, p.Fees.Tax, p.Fees.TotalFees,
		p.SagaID, string(p.SagaStatus), string(steps), p.RetryCount,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// duplicate booking event; a payment already exists for this ride
		return false, nil
	}

	eventData := map[string]any{
		"ride_id": p.RideID,
		"amount":  p.Amount,
		"method":  p.Method.String(),
		"saga_id": p.SagaID,
	}
	if err := insertPaymentEvent(ctx, tx, p.ID, "PAYMENT_CREATED", eventData); err != nil {
		return false, err
	}

	return true, nil
}

// GetByID fetches a payment by primary key (uuid).
func (repo *PaymentRepo) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	return repo.fetchOne(ctx, "id", id, "")
}

// GetByRideID fetches the payment attached to a ride.
func (repo *PaymentRepo) GetByRideID(ctx context.Context, rideID string) (*payment.Payment, error) {
	return repo.fetchOne(ctx, "ride_id", rideID, "")
}

// GetForUpdate fetches a payment by primary key with a row lock, serializing
// saga runs, retries, and refunds on the same payment.
func (repo *PaymentRepo) GetForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	return repo.fetchOne(ctx, "id", id, "FOR UPDATE")
}

func (repo *PaymentRepo) fetchOne(ctx context.Context, column, value, lock string) (*payment.Payment, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT`+paymentColumns+` FROM payments WHERE `+column+` = $1 `+lock, value)
	out, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, err
	}
	return out, nil
}

// Save persists the mutable fields of the aggregate and appends an audit event
// describing the new status.
func (repo *PaymentRepo) Save(ctx context.Context, p *payment.Payment) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	steps, err := json.Marshal(p.SagaSteps)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE payments
		SET status = $1,
		    provider = $2,
		    transaction_id = $3,
		    saga_status = $4,
		    saga_steps = $5::jsonb,
		    refund_amount = $6,
		    refund_reason = $7,
		    refund_status = $8,
		    retry_count = $9,
		    next_retry_at = $10,
		    completed_at = $11,
		    updated_at = $12
		WHERE id = $13
	`,
		p.Status.String(),
		p.Provider,
		nullIfEmpty(p.TransactionID),
		string(p.SagaStatus),
		string(steps),
		p.Refund.Amount,
		nullIfEmpty(p.Refund.Reason),
		nullIfEmpty(p.Refund.Status),
		p.RetryCount,
		p.NextRetryAt,
		p.CompletedAt,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrPaymentNotFound
	}

	eventData := map[string]any{
		"status":      p.Status.String(),
		"saga_status": string(p.SagaStatus),
		"retry_count": p.RetryCount,
	}
	if p.TransactionID != "" {
		eventData["transaction_id"] = p.TransactionID
	}
	return insertPaymentEvent(ctx, tx, p.ID, "PAYMENT_UPDATED", eventData)
}

// ListDueRetries returns failed payments whose next retry is due, oldest first.
// A payment with a NULL next_retry_at is not scheduled and is never returned.
func (repo *PaymentRepo) ListDueRetries(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT`+paymentColumns+`
		FROM payments
		WHERE status = 'failed'
		  AND next_retry_at IS NOT NULL
		  AND next_retry_at <= $1
		ORDER BY next_retry_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due retries: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}

// ListStaleProcessing returns payments stuck mid-saga: still marked processing
// but untouched since the cutoff. Progress is persisted after every step, so
// these are runs whose process crashed before reaching a terminal status.
func (repo *PaymentRepo) ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*payment.Payment, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT`+paymentColumns+`
		FROM payments
		WHERE status = 'processing'
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale processing payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}

// --- helpers ---

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var out payment.Payment
	var method, status, sagaStatus string
	var provider, refundReason, refundStatus, transactionID *string
	var steps []byte

	err := row.Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.RideID, &out.UserID,
		&out.Amount, &method, &provider, &status,
		&out.Fees.PlatformFee, &out.Fees.ProviderFee, &out.Fees.Tax, &out.Fees.TotalFees,
		&out.Refund.Amount, &refundReason, &refundStatus, &transactionID,
		&out.SagaID, &sagaStatus, &steps,
		&out.RetryCount, &out.NextRetryAt, &out.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	out.Method = payment.Method(method)
	out.Status = payment.Status(status)
	out.SagaStatus = payment.SagaStatus(sagaStatus)
	if provider != nil {
		out.Provider = *provider
	}
	if refundReason != nil {
		out.Refund.Reason = *refundReason
	}
	if refundStatus != nil {
		out.Refund.Status = *refundStatus
	}
	if transactionID != nil {
		out.TransactionID = *transactionID
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &out.SagaSteps); err != nil {
			return nil, fmt.Errorf("decode saga steps: %w", err)
		}
	}

	return &out, nil
}

// insertPaymentEvent writes a row into payment_events with encoded event_data.
func insertPaymentEvent(ctx context.Context, tx pgx.Tx, paymentID, eventType string, eventData any) error {
	body, err := json.Marshal(eventData)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payment_events (payment_id, event_type, event_data)
		VALUES ($1, $2, $3::jsonb)
	`, paymentID, eventType, string(body))
	return err
}
