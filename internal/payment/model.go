package payment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ResultCodeSuccess is the gateway's result code for a completed payment.
const ResultCodeSuccess = 0

// Payment is one ledger entry per payment-prompt attempt, keyed by the
// gateway correlation id once the push is accepted. A payment links to a
// referral or to a booking, never both; the constructors below are the
// only way entries are built.
type Payment struct {
	ID            uuid.UUID
	ReferralID    *uuid.UUID
	BookingID     *uuid.UUID
	PhoneNumber   string
	Amount        int
	Status        Status
	CorrelationID string
	ReceiptID     *string
	ErrorMessage  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewReferralPayment(referralID uuid.UUID, phone string, amount int, correlationID string) *Payment {
	return &Payment{
		ReferralID:    &referralID,
		PhoneNumber:   phone,
		Amount:        amount,
		Status:        StatusPending,
		CorrelationID: correlationID,
	}
}

func NewBookingPayment(bookingID uuid.UUID, phone string, amount int, correlationID string) *Payment {
	return &Payment{
		BookingID:     &bookingID,
		PhoneNumber:   phone,
		Amount:        amount,
		Status:        StatusPending,
		CorrelationID: correlationID,
	}
}

// Callback is the gateway's asynchronous result delivery. It may arrive
// more than once and out of order.
type Callback struct {
	CorrelationID string
	ResultCode    int
	ResultDesc    string
	ReceiptID     *string
}

// Outcome carries everything the caller needs to acknowledge the gateway
// and fire a best-effort notification.
type Outcome struct {
	PaymentID        uuid.UUID
	Status           Status
	AlreadyProcessed bool
	PaymentMissing   bool

	ReferralID *uuid.UUID
	BookingID  *uuid.UUID

	// BookingPastExpiry is set when a success callback arrived after the
	// booking's reservation window: the payment is recorded completed but
	// the booking is left for manual reconciliation.
	BookingPastExpiry bool

	PhoneNumber   string
	Amount        int
	PatientName   string
	ReferralToken string
}
