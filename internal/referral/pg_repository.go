package referral

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const referralColumns = `
	id, physician_id, patient_name, patient_id, patient_national_id,
	patient_date_of_birth, medical_history, lab_results, diagnosis,
	referring_hospital, receiving_facility, priority, status, referral_token,
	patient_phone, stk_phone_number, booked_date, booked_time, stk_sent_count,
	paid_at, completed_at, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanReferral(row pgx.Row) (*Referral, error) {
	var r Referral

	err := row.Scan(
		&r.ID,
		&r.PhysicianID,
		&r.PatientName,
		&r.PatientID,
		&r.PatientNationalID,
		&r.PatientDateOfBirth,
		&r.MedicalHistory,
		&r.LabResults,
		&r.Diagnosis,
		&r.ReferringHospital,
		&r.ReceivingFacility,
		&r.Priority,
		&r.Status,
		&r.ReferralToken,
		&r.PatientPhone,
		&r.STKPhoneNumber,
		&r.BookedDate,
		&r.BookedTime,
		&r.STKSentCount,
		&r.PaidAt,
		&r.CompletedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}

	return &r, nil
}

func collectReferrals(rows pgx.Rows) ([]Referral, error) {
	defer rows.Close()

	var result []Referral
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (repo *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Referral, error) {
	row := repo.pool.QueryRow(ctx, `
		SELECT `+referralColumns+`
		FROM referrals
		WHERE id = $1
	`, id)
	return scanReferral(row)
}

func (repo *PgRepository) GetByToken(ctx context.Context, token string) (*Referral, error) {
	row := repo.pool.QueryRow(ctx, `
		SELECT `+referralColumns+`
		FROM referrals
		WHERE referral_token = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, token)
	return scanReferral(row)
}

func (repo *PgRepository) FindOpenByPatientID(ctx context.Context, patientID string) (*Referral, error) {
	row := repo.pool.QueryRow(ctx, `
		SELECT `+referralColumns+`
		FROM referrals
		WHERE patient_id = $1
		  AND status NOT IN ('completed', 'cancelled')
		ORDER BY created_at DESC
		LIMIT 1
	`, patientID)
	return scanReferral(row)
}

func (repo *PgRepository) Create(ctx context.Context, ref *Referral) (*Referral, error) {
	id := uuid.New()

	row := repo.pool.QueryRow(ctx, `
		INSERT INTO referrals (
			id, physician_id, patient_name, patient_id, patient_national_id,
			patient_date_of_birth, medical_history, lab_results, diagnosis,
			referring_hospital, receiving_facility, priority, status,
			referral_token, stk_sent_count, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 0, now(), now())
		RETURNING `+referralColumns+`
	`, id, ref.PhysicianID, ref.PatientName, ref.PatientID, ref.PatientNationalID,
		ref.PatientDateOfBirth, ref.MedicalHistory, ref.LabResults, ref.Diagnosis,
		ref.ReferringHospital, ref.ReceivingFacility, ref.Priority, ref.Status,
		ref.ReferralToken)

	return scanReferral(row)
}

func (repo *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, paidAt, completedAt *time.Time) (*Referral, error) {
	row := repo.pool.QueryRow(ctx, `
		UPDATE referrals
		SET status = $2,
		    paid_at = COALESCE($4, paid_at),
		    completed_at = COALESCE($5, completed_at),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+referralColumns+`
	`, id, to, from, paidAt, completedAt)

	return scanReferral(row)
}

func (repo *PgRepository) SaveBiodata(ctx context.Context, id uuid.UUID, b Biodata) (*Referral, error) {
	row := repo.pool.QueryRow(ctx, `
		UPDATE referrals
		SET patient_phone = $2,
		    stk_phone_number = $3,
		    patient_date_of_birth = COALESCE($4, patient_date_of_birth),
		    patient_national_id = COALESCE($5, patient_national_id),
		    booked_date = COALESCE($6, booked_date),
		    booked_time = COALESCE($7, booked_time),
		    status = 'pending-payment',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending-admin'
		RETURNING `+referralColumns+`
	`, id, b.PatientPhone, b.STKPhoneNumber, b.PatientDateOfBirth,
		b.PatientNationalID, b.BookedDate, b.BookedTime)

	return scanReferral(row)
}

func (repo *PgRepository) UpdatePhones(ctx context.Context, id uuid.UUID, patientPhone, stkPhone string) (*Referral, error) {
	row := repo.pool.QueryRow(ctx, `
		UPDATE referrals
		SET patient_phone = $2,
		    stk_phone_number = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+referralColumns+`
	`, id, patientPhone, stkPhone)

	return scanReferral(row)
}

func (repo *PgRepository) IncrementPushCount(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := repo.pool.QueryRow(ctx, `
		UPDATE referrals
		SET stk_sent_count = stk_sent_count + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING stk_sent_count
	`, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrReferralNotFound
		}
		return 0, err
	}
	return count, nil
}

func (repo *PgRepository) ListByPhysician(ctx context.Context, physicianID uuid.UUID) ([]Referral, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT `+referralColumns+`
		FROM referrals
		WHERE physician_id = $1
		ORDER BY created_at DESC
	`, physicianID)
	if err != nil {
		return nil, err
	}
	return collectReferrals(rows)
}

func (repo *PgRepository) ListByStatus(ctx context.Context, status Status) ([]Referral, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT `+referralColumns+`
		FROM referrals
		WHERE status = $1
		ORDER BY created_at DESC
	`, status)
	if err != nil {
		return nil, err
	}
	return collectReferrals(rows)
}

func (repo *PgRepository) ListOpenForAdmin(ctx context.Context) ([]Referral, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT `+referralColumns+`
		FROM referrals
		WHERE status IN ('pending-admin', 'awaiting-biodata', 'pending-payment')
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return collectReferrals(rows)
}

func (repo *PgRepository) ListCompleted(ctx context.Context) ([]Referral, error) {
	rows, err := repo.pool.Query(ctx, `
		SELECT `+referralColumns+`
		FROM referrals
		WHERE status IN ('confirmed', 'paid', 'completed')
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return collectReferrals(rows)
}
