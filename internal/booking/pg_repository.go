package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `
	id, referral_id, patient_id, patient_phone, stk_phone_number, clinic_id,
	slot_id, booking_date, booking_time, status, payment_amount, receipt_id,
	stk_sent_count, expires_at, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.ReferralID,
		&b.PatientID,
		&b.PatientPhone,
		&b.STKPhoneNumber,
		&b.ClinicID,
		&b.SlotID,
		&b.BookingDate,
		&b.BookingTime,
		&b.Status,
		&b.PaymentAmount,
		&b.ReceiptID,
		&b.STKSentCount,
		&b.ExpiresAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (repo *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := repo.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (repo *PgRepository) Create(ctx context.Context, b *Booking) (*Booking, error) {
	id := uuid.New()

	row := repo.pool.QueryRow(ctx, `
		INSERT INTO bookings (
			id, referral_id, patient_id, patient_phone, stk_phone_number,
			clinic_id, slot_id, booking_date, booking_time, status,
			payment_amount, stk_sent_count, expires_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, now(), now())
		RETURNING `+bookingColumns+`
	`, id, b.ReferralID, b.PatientID, b.PatientPhone, b.STKPhoneNumber,
		b.ClinicID, b.SlotID, b.BookingDate, b.BookingTime, b.Status,
		b.PaymentAmount, b.ExpiresAt)

	return scanBooking(row)
}

func (repo *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error) {
	row := repo.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+bookingColumns+`
	`, id, to, from)

	return scanBooking(row)
}

func (repo *PgRepository) IncrementPushCount(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := repo.pool.QueryRow(ctx, `
		UPDATE bookings
		SET stk_sent_count = stk_sent_count + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING stk_sent_count
	`, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrBookingNotFound
		}
		return 0, err
	}
	return count, nil
}

func (repo *PgRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Booking, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = 'pending-payment'
		  AND expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (repo *PgRepository) ListByPatient(ctx context.Context, patientID string) ([]Booking, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (repo *PgRepository) ListByClinicDate(ctx context.Context, clinicID, date string) ([]Booking, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE clinic_id = $1
		  AND booking_date = $2
		ORDER BY booking_time
	`, clinicID, date)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (repo *PgRepository) ListAll(ctx context.Context) ([]Booking, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}
