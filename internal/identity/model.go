package identity

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RolePhysician Role = "physician"
	RolePatient   Role = "patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePhysician, RolePatient:
		return true
	}
	return false
}

// User is the acting identity. Role is immutable after creation.
type User struct {
	ID          uuid.UUID
	Role        Role
	FullName    string
	Email       *string
	PhoneNumber *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Physician links a user of role physician to a license and home facility.
// The license id doubles as an alternate login key.
type Physician struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	LicenseID      string
	Hospital       string
	Specialization *string
	IsVerified     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clinic is reference data for bookings.
type Clinic struct {
	ID                uuid.UUID
	Name              string
	FacilityName      string
	Location          string
	MaxPatientsPerDay int
	ContactPhone      *string
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
