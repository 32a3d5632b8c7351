package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPendingPayment Status = "pending-payment"
	StatusConfirmed      Status = "confirmed"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusConfirmed, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

var forward = map[Status][]Status{
	StatusPendingPayment: {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed:      {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	for _, next := range forward[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Booking reserves a clinic slot, optionally tied to a referral. A
// pending-payment booking holds the slot only until ExpiresAt.
type Booking struct {
	ID             uuid.UUID
	ReferralID     *uuid.UUID
	PatientID      string
	PatientPhone   string
	STKPhoneNumber string
	ClinicID       string
	SlotID         string
	BookingDate    string
	BookingTime    string
	Status         Status
	PaymentAmount  int
	ReceiptID      *string
	STKSentCount   int
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Expired reports whether the reservation window has passed.
func (b *Booking) Expired(now time.Time) bool {
	return b.ExpiresAt.Before(now)
}
