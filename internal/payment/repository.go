package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/referral-service/internal/booking"
	"github.com/afyalink/referral-service/internal/referral"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
)

// Repository contains the ledger reads and writes used outside the
// reconciliation transaction.
type Repository interface {
	Create(ctx context.Context, p *Payment) (*Payment, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*Payment, error)
	ListByReferral(ctx context.Context, referralID uuid.UUID) ([]Payment, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]Payment, error)
}

// ReferralRow is the slice of a referral the reconciler touches.
type ReferralRow struct {
	ID            uuid.UUID
	PatientName   string
	ReferralToken string
	Status        referral.Status
}

// BookingRow is the slice of a booking the reconciler touches.
type BookingRow struct {
	ID         uuid.UUID
	ReferralID *uuid.UUID
	PatientID  string
	Status     booking.Status
	ExpiresAt  time.Time
}

// Tx is the unit of work inside one reconciliation transaction. The
// payment row lock taken by PaymentForUpdate is the sole arbitration
// point for concurrent deliveries of the same correlation id.
type Tx interface {
	// PaymentForUpdate loads and row-locks the payment.
	PaymentForUpdate(ctx context.Context, correlationID string) (*Payment, error)

	MarkPaymentOutcome(ctx context.Context, id uuid.UUID, status Status, receiptID, errMsg *string) error

	GetReferral(ctx context.Context, id uuid.UUID) (*ReferralRow, error)

	// MarkReferralPaid swaps pending-payment to paid, stamping paidAt and
	// completedAt. Returns false when the referral was no longer in
	// pending-payment.
	MarkReferralPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	GetBooking(ctx context.Context, id uuid.UUID) (*BookingRow, error)

	// ConfirmBooking swaps pending-payment to confirmed and stores the
	// receipt. Returns false when the booking was no longer in
	// pending-payment.
	ConfirmBooking(ctx context.Context, id uuid.UUID, receiptID *string) (bool, error)
}

// Store runs reconciliation units of work atomically: either every write
// in fn lands or none do.
type Store interface {
	Repository
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
