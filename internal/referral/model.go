package referral

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPendingAdmin    Status = "pending-admin"
	StatusAwaitingBiodata Status = "awaiting-biodata"
	StatusPendingPayment  Status = "pending-payment"
	StatusPaid            Status = "paid"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"

	// StatusConfirmed is a historical alias of StatusPaid kept for
	// compatibility with data written under the old naming scheme. It is
	// normalized to StatusPaid on every write.
	StatusConfirmed Status = "confirmed"
)

// Normalize maps legacy aliases onto their canonical status.
func (s Status) Normalize() Status {
	if s == StatusConfirmed {
		return StatusPaid
	}
	return s
}

func (s Status) Valid() bool {
	switch s {
	case StatusPendingAdmin, StatusAwaitingBiodata, StatusPendingPayment,
		StatusPaid, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s.Normalize() {
	case StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// forward lists the legal forward transitions. Cancellation is handled
// separately: it is reachable from every non-terminal state.
var forward = map[Status][]Status{
	StatusPendingAdmin:    {StatusAwaitingBiodata, StatusPendingPayment},
	StatusAwaitingBiodata: {StatusPendingPayment},
	StatusPendingPayment:  {StatusPaid},
	StatusPaid:            {StatusCompleted},
}

// CanTransition reports whether moving from -> to is legal. Both sides
// are normalized first, so "confirmed" behaves exactly like "paid".
func CanTransition(from, to Status) bool {
	from = from.Normalize()
	to = to.Normalize()

	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	for _, next := range forward[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityRoutine   Priority = "Routine"
	PriorityUrgent    Priority = "Urgent"
	PriorityEmergency Priority = "Emergency"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityRoutine, PriorityUrgent, PriorityEmergency:
		return true
	}
	return false
}

// Referral is the primary workflow entity. Clinical free text is stored
// verbatim and never interpreted.
type Referral struct {
	ID                 uuid.UUID
	PhysicianID        uuid.UUID
	PatientName        string
	PatientID          *string // external MRN, optional
	PatientNationalID  *string
	PatientDateOfBirth *string
	MedicalHistory     string
	LabResults         string
	Diagnosis          string
	ReferringHospital  string
	ReceivingFacility  string
	Priority           Priority
	Status             Status
	ReferralToken      string
	PatientPhone       *string
	STKPhoneNumber     *string // phone that receives the payment prompt, may differ
	BookedDate         *string
	BookedTime         *string
	STKSentCount       int
	PaidAt             *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
