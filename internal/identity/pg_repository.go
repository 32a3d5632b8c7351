package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanUser(row pgx.Row) (*User, error) {
	var u User

	err := row.Scan(
		&u.ID,
		&u.Role,
		&u.FullName,
		&u.Email,
		&u.PhoneNumber,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}

func scanPhysician(row pgx.Row) (*Physician, error) {
	var p Physician

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.LicenseID,
		&p.Hospital,
		&p.Specialization,
		&p.IsVerified,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPhysicianNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.FacilityName,
		&c.Location,
		&c.MaxPatientsPerDay,
		&c.ContactPhone,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}

	return &c, nil
}

// Interface methods

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, role, full_name, email, phone_number, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PgRepository) GetPhysicianByID(ctx context.Context, id uuid.UUID) (*Physician, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, license_id, hospital, specialization, is_verified, created_at, updated_at
		FROM physicians
		WHERE id = $1
	`, id)
	return scanPhysician(row)
}

func (r *PgRepository) GetPhysicianByUser(ctx context.Context, userID uuid.UUID) (*Physician, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, license_id, hospital, specialization, is_verified, created_at, updated_at
		FROM physicians
		WHERE user_id = $1
	`, userID)
	return scanPhysician(row)
}

func (r *PgRepository) GetPhysicianByLicense(ctx context.Context, licenseID string) (*Physician, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, license_id, hospital, specialization, is_verified, created_at, updated_at
		FROM physicians
		WHERE license_id = $1
	`, licenseID)
	return scanPhysician(row)
}

func (r *PgRepository) GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, facility_name, location, max_patients_per_day, contact_phone, is_active, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}
