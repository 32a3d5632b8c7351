package notify

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeBooking     Type = "booking"
	TypePayment     Type = "payment"
	TypeOverdue     Type = "overdue"
	TypeRescheduled Type = "rescheduled"
	TypeReferral    Type = "referral"
)

// Notification is an in-app message for one user. Only the read flag is
// ever mutated after creation.
type Notification struct {
	ID         uuid.UUID
	UserID     string
	Type       Type
	Title      string
	Message    string
	IsRead     bool
	BookingID  *string
	ReferralID *string
	CreatedAt  time.Time
}
