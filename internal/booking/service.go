package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/afyalink/referral-service/internal/audit"
	"github.com/afyalink/referral-service/internal/auth"
	"github.com/afyalink/referral-service/internal/identity"
	"github.com/afyalink/referral-service/internal/notify"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBookingExpired    = errors.New("booking reservation has expired")
)

type Service struct {
	repo          Repository
	clinics       identity.Repository
	notifications notify.Repository
	audit         audit.Sink
	ttl           time.Duration
	log           zerolog.Logger
	now           func() time.Time
}

func NewService(repo Repository, clinics identity.Repository, notifications notify.Repository, sink audit.Sink, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		clinics:       clinics,
		notifications: notifications,
		audit:         sink,
		ttl:           ttl,
		log:           log,
		now:           time.Now,
	}
}

type CreateInput struct {
	ReferralID     *uuid.UUID
	PatientID      string
	PatientPhone   string
	STKPhoneNumber string
	ClinicID       string
	SlotID         string
	BookingDate    string
	BookingTime    string
	PaymentAmount  int
}

// Create reserves a slot in pending-payment. The reservation holds for a
// fixed window from creation; payment must land inside it.
func (s *Service) Create(ctx context.Context, actor *identity.User, in CreateInput) (*Booking, error) {
	if err := auth.RequireRole(actor, identity.RolePatient, identity.RolePhysician, identity.RoleAdmin); err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.PatientID) == "" {
		return nil, fmt.Errorf("%w: patient id is required", ErrValidation)
	}
	if strings.TrimSpace(in.PatientPhone) == "" || strings.TrimSpace(in.STKPhoneNumber) == "" {
		return nil, fmt.Errorf("%w: both phone numbers are required", ErrValidation)
	}
	if in.PaymentAmount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}

	clinicID, err := uuid.Parse(in.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("%w: clinic id must be a valid UUID", ErrValidation)
	}
	clinic, err := s.clinics.GetClinicByID(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	if !clinic.IsActive {
		return nil, fmt.Errorf("%w: clinic %s is not accepting bookings", ErrValidation, clinic.Name)
	}

	created, err := s.repo.Create(ctx, &Booking{
		ReferralID:     in.ReferralID,
		PatientID:      in.PatientID,
		PatientPhone:   in.PatientPhone,
		STKPhoneNumber: in.STKPhoneNumber,
		ClinicID:       in.ClinicID,
		SlotID:         in.SlotID,
		BookingDate:    in.BookingDate,
		BookingTime:    in.BookingTime,
		Status:         StatusPendingPayment,
		PaymentAmount:  in.PaymentAmount,
		ExpiresAt:      s.now().Add(s.ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, "create_booking", created.ID.String(), map[string]any{
		"clinic_id": created.ClinicID,
		"date":      created.BookingDate,
	})

	return created, nil
}

// Confirm moves a pending-payment booking to confirmed. It exists for
// manual reconciliation by an admin; the normal path is the payment
// callback. A booking past its expiry window is never confirmed.
func (s *Service) Confirm(ctx context.Context, actor *identity.User, id uuid.UUID) (*Booking, error) {
	if err := auth.RequireRole(actor, identity.RoleAdmin); err != nil {
		return nil, err
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPendingPayment {
		return nil, fmt.Errorf("%w: confirm requires pending-payment, booking is %s", ErrInvalidTransition, b.Status)
	}
	if b.Expired(s.now()) {
		return nil, ErrBookingExpired
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusPendingPayment, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("confirm booking: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, "confirm_booking", id.String(), map[string]any{
		"manual": true,
	})

	return updated, nil
}

// UpdateStatus applies an explicit transition by staff.
func (s *Service) UpdateStatus(ctx context.Context, actor *identity.User, id uuid.UUID, target Status) (*Booking, error) {
	if err := auth.RequireRole(actor, identity.RoleAdmin, identity.RolePhysician); err != nil {
		return nil, err
	}

	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, target)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, b.Status, target)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, "update_booking_status", id.String(), map[string]any{
		"from": string(b.Status),
		"to":   string(target),
	})

	return updated, nil
}

// ExpireDue transitions every overdue pending-payment booking to expired
// and notifies the patient. Safe to run repeatedly and concurrently: the
// compare-and-swap update makes a second expiry of the same booking a
// no-op.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.repo.FindExpiredPending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find expired pending bookings: %w", err)
	}

	expired := 0
	for _, b := range due {
		_, err := s.repo.UpdateStatus(ctx, b.ID, StatusPendingPayment, StatusExpired)
		if err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				// Another sweep or a payment got there first.
				continue
			}
			s.log.Error().Err(err).Str("booking_id", b.ID.String()).Msg("failed to expire booking")
			continue
		}
		expired++

		s.audit.Record(ctx, nil, "expire_booking", b.ID.String(), map[string]any{
			"expires_at": b.ExpiresAt,
		})

		bookingID := b.ID.String()
		_, err = s.notifications.Create(ctx, &notify.Notification{
			UserID:    b.PatientID,
			Type:      notify.TypeBooking,
			Title:     "Booking Expired",
			Message:   fmt.Sprintf("Your booking for %s has expired due to non-payment.", b.BookingDate),
			BookingID: &bookingID,
		})
		if err != nil {
			s.log.Error().Err(err).Str("booking_id", bookingID).Msg("failed to create expiry notification")
		}
	}

	if expired > 0 {
		s.log.Info().Int("count", expired).Msg("expired overdue bookings")
	}

	return expired, nil
}

func (s *Service) GetByID(ctx context.Context, actor *identity.User, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireSelfOrAdmin(actor, patientUUID(b.PatientID)); err != nil {
		// Staff may also look bookings up.
		if roleErr := auth.RequireRole(actor, identity.RolePhysician); roleErr != nil {
			return nil, err
		}
	}
	return b, nil
}

// ListByPatient returns one patient's bookings. Patients see only their
// own; staff see anyone's.
func (s *Service) ListByPatient(ctx context.Context, actor *identity.User, patientID string) ([]Booking, error) {
	if actor == nil {
		return nil, auth.ErrUnauthenticated
	}
	if actor.Role == identity.RolePatient && actor.ID.String() != patientID {
		return nil, auth.ErrForbidden
	}
	return s.repo.ListByPatient(ctx, patientID)
}

// ListByClinicDate feeds the slot-availability display.
func (s *Service) ListByClinicDate(ctx context.Context, clinicID, date string) ([]Booking, error) {
	return s.repo.ListByClinicDate(ctx, clinicID, date)
}

func (s *Service) ListAll(ctx context.Context, actor *identity.User) ([]Booking, error) {
	if err := auth.RequireRole(actor, identity.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListAll(ctx)
}

func patientUUID(patientID string) uuid.UUID {
	id, err := uuid.Parse(patientID)
	if err != nil {
		return uuid.Nil
	}
	return id
}
