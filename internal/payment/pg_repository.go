package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afyalink/referral-service/internal/booking"
	"github.com/afyalink/referral-service/internal/referral"
)

const paymentColumns = `
	id, referral_id, booking_id, phone_number, amount, status,
	correlation_id, receipt_id, error_message, created_at, updated_at`

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment

	err := row.Scan(
		&p.ID,
		&p.ReferralID,
		&p.BookingID,
		&p.PhoneNumber,
		&p.Amount,
		&p.Status,
		&p.CorrelationID,
		&p.ReceiptID,
		&p.ErrorMessage,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]Payment, error) {
	defer rows.Close()

	var result []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgStore) Create(ctx context.Context, p *Payment) (*Payment, error) {
	id := uuid.New()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO payments (
			id, referral_id, booking_id, phone_number, amount, status,
			correlation_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+paymentColumns+`
	`, id, p.ReferralID, p.BookingID, p.PhoneNumber, p.Amount, p.Status, p.CorrelationID)

	return scanPayment(row)
}

func (s *PgStore) GetByCorrelationID(ctx context.Context, correlationID string) (*Payment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE correlation_id = $1
	`, correlationID)
	return scanPayment(row)
}

func (s *PgStore) ListByReferral(ctx context.Context, referralID uuid.UUID) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE referral_id = $1
		ORDER BY created_at DESC
	`, referralID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (s *PgStore) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE booking_id = $1
		ORDER BY created_at DESC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

// WithTx runs fn inside one database transaction.
func (s *PgStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	pgtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = pgtx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: pgtx}); err != nil {
		return err
	}

	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) PaymentForUpdate(ctx context.Context, correlationID string) (*Payment, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE correlation_id = $1
		FOR UPDATE
	`, correlationID)
	return scanPayment(row)
}

func (t *pgTx) MarkPaymentOutcome(ctx context.Context, id uuid.UUID, status Status, receiptID, errMsg *string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE payments
		SET status = $2,
		    receipt_id = $3,
		    error_message = $4,
		    updated_at = now()
		WHERE id = $1
	`, id, status, receiptID, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (t *pgTx) GetReferral(ctx context.Context, id uuid.UUID) (*ReferralRow, error) {
	var r ReferralRow
	err := t.tx.QueryRow(ctx, `
		SELECT id, patient_name, referral_token, status
		FROM referrals
		WHERE id = $1
	`, id).Scan(&r.ID, &r.PatientName, &r.ReferralToken, &r.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, referral.ErrReferralNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (t *pgTx) MarkReferralPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE referrals
		SET status = 'paid',
		    paid_at = $2,
		    completed_at = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending-payment'
	`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgTx) GetBooking(ctx context.Context, id uuid.UUID) (*BookingRow, error) {
	var b BookingRow
	err := t.tx.QueryRow(ctx, `
		SELECT id, referral_id, patient_id, status, expires_at
		FROM bookings
		WHERE id = $1
	`, id).Scan(&b.ID, &b.ReferralID, &b.PatientID, &b.Status, &b.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (t *pgTx) ConfirmBooking(ctx context.Context, id uuid.UUID, receiptID *string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'confirmed',
		    receipt_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending-payment'
	`, id, receiptID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
