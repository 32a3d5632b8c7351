package referral

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrReferralNotFound = errors.New("referral not found")
)

// Biodata carries the admin-entered patient details that move a referral
// into pending-payment.
type Biodata struct {
	PatientPhone       string
	STKPhoneNumber     string
	PatientDateOfBirth *string
	PatientNationalID  *string
	BookedDate         *string
	BookedTime         *string
}

// Repository contains all DB interactions needed by the referral service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	GetByToken(ctx context.Context, token string) (*Referral, error)

	// FindOpenByPatientID returns an in-flight referral for the external
	// patient id so its token can be reused, or ErrReferralNotFound.
	FindOpenByPatientID(ctx context.Context, patientID string) (*Referral, error)

	Create(ctx context.Context, ref *Referral) (*Referral, error)

	// UpdateStatus performs a compare-and-swap transition. It returns
	// ErrReferralNotFound when no row matched id+from, which the service
	// interprets as a lost race.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, paidAt, completedAt *time.Time) (*Referral, error)

	// SaveBiodata stores biodata and swaps pending-admin to
	// pending-payment in one statement.
	SaveBiodata(ctx context.Context, id uuid.UUID, b Biodata) (*Referral, error)

	UpdatePhones(ctx context.Context, id uuid.UUID, patientPhone, stkPhone string) (*Referral, error)
	IncrementPushCount(ctx context.Context, id uuid.UUID) (int, error)

	ListByPhysician(ctx context.Context, physicianID uuid.UUID) ([]Referral, error)
	ListByStatus(ctx context.Context, status Status) ([]Referral, error)
	ListOpenForAdmin(ctx context.Context) ([]Referral, error)
	ListCompleted(ctx context.Context) ([]Referral, error)
}
