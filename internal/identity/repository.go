package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrPhysicianNotFound = errors.New("physician not found")
	ErrClinicNotFound    = errors.New("clinic not found")
)

// Repository contains all DB interactions needed by the access gate and
// the referral/booking services.
type Repository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)

	GetPhysicianByID(ctx context.Context, id uuid.UUID) (*Physician, error)
	GetPhysicianByUser(ctx context.Context, userID uuid.UUID) (*Physician, error)
	GetPhysicianByLicense(ctx context.Context, licenseID string) (*Physician, error)

	GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
}
