package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
)

// Repository contains all DB interactions needed by the booking service
// and the expiry worker.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	Create(ctx context.Context, b *Booking) (*Booking, error)

	// UpdateStatus performs a compare-and-swap transition and returns
	// ErrBookingNotFound when no row matched id+from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error)

	IncrementPushCount(ctx context.Context, id uuid.UUID) (int, error)

	// FindExpiredPending returns pending-payment bookings whose expiry
	// has passed.
	FindExpiredPending(ctx context.Context, now time.Time) ([]Booking, error)

	ListByPatient(ctx context.Context, patientID string) ([]Booking, error)
	ListByClinicDate(ctx context.Context, clinicID, date string) ([]Booking, error)
	ListAll(ctx context.Context) ([]Booking, error)
}
