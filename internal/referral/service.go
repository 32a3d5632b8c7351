package referral

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
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Service struct {
	repo       Repository
	physicians identity.Repository
	audit      audit.Sink
	log        zerolog.Logger
}

func NewService(repo Repository, physicians identity.Repository, sink audit.Sink, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		physicians: physicians,
		audit:      sink,
		log:        log,
	}
}

type CreateInput struct {
	PhysicianID        uuid.UUID
	PatientName        string
	PatientID          *string
	PatientNationalID  *string
	PatientDateOfBirth *string
	MedicalHistory     string
	LabResults         string
	Diagnosis          string
	ReferringHospital  string
	ReceivingFacility  string
	Priority           Priority
}

// Create registers a new referral in pending-admin. The referral token is
// reused from any still-open referral of the same external patient id so
// one in-flight case never holds two tokens.
func (s *Service) Create(ctx context.Context, actor *identity.User, in CreateInput) (*Referral, error) {
	if err := auth.RequireRole(actor, identity.RolePhysician, identity.RoleAdmin); err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.PatientName) == "" {
		return nil, fmt.Errorf("%w: patient name is required", ErrValidation)
	}
	if strings.TrimSpace(in.LabResults) == "" {
		return nil, fmt.Errorf("%w: lab results are required", ErrValidation)
	}
	if strings.TrimSpace(in.Diagnosis) == "" {
		return nil, fmt.Errorf("%w: diagnosis is required", ErrValidation)
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, in.Priority)
	}

	physician, err := s.physicians.GetPhysicianByID(ctx, in.PhysicianID)
	if err != nil {
		if errors.Is(err, identity.ErrPhysicianNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load physician: %w", err)
	}

	// Physicians may only file referrals as themselves.
	if actor.Role == identity.RolePhysician && physician.UserID != actor.ID {
		return nil, auth.ErrForbidden
	}

	token := ""
	if in.PatientID != nil && strings.TrimSpace(*in.PatientID) != "" {
		open, err := s.repo.FindOpenByPatientID(ctx, *in.PatientID)
		if err != nil && !errors.Is(err, ErrReferralNotFound) {
			return nil, fmt.Errorf("check open referrals: %w", err)
		}
		if open != nil {
			token = open.ReferralToken
		}
	}
	if token == "" {
		token = GenerateToken()
	}

	created, err := s.repo.Create(ctx, &Referral{
		PhysicianID:        in.PhysicianID,
		PatientName:        in.PatientName,
		PatientID:          in.PatientID,
		PatientNationalID:  in.PatientNationalID,
		PatientDateOfBirth: in.PatientDateOfBirth,
		MedicalHistory:     in.MedicalHistory,
		LabResults:         in.LabResults,
		Diagnosis:          in.Diagnosis,
		ReferringHospital:  in.ReferringHospital,
		ReceivingFacility:  in.ReceivingFacility,
		Priority:           in.Priority,
		Status:             StatusPendingAdmin,
		ReferralToken:      token,
	})
	if err != nil {
		return nil, fmt.Errorf("create referral: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, "create_referral", created.ID.String(), map[string]any{
		"patient_name": created.PatientName,
		"priority":     string(created.Priority),
		"token":        created.ReferralToken,
	})

	return created, nil
}

// AttachBiodata stores patient contact details and moves the referral
// from pending-admin to pending-payment in one step. The caller triggers
// the payment prompt afterwards.
func (s *Service) AttachBiodata(ctx context.Context, actor *identity.User, id uuid.UUID, b Biodata) (*Referral, error) {
	if err := auth.RequireRole(actor, identity.RoleAdmin); err != nil {
		return nil, err
	}

	if strings.TrimSpace(b.PatientPhone) == "" {
		return nil, fmt.Errorf("%w: patient phone is required", ErrValidation)
	}
	if strings.TrimSpace(b.STKPhoneNumber) == "" {
		return nil, fmt.Errorf("%w: payment prompt phone is required", ErrValidation)
	}

	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.Status.Normalize() != StatusPendingAdmin {
		return nil, fmt.Errorf("%w: biodata requires pending-admin, referral is %s", ErrInvalidTransition, ref.Status)
	}

	updated, err := s.repo.SaveBiodata(ctx, id, b)
	if err != nil {
		if errors.Is(err, ErrReferralNotFound) {
			// Row existed a moment ago: a concurrent transition won.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("save biodata: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, "save_biodata", id.String(), map[string]any{
		"patient_phone": b.PatientPhone,
		"stk_phone":     b.STKPhoneNumber,
	})

	return updated, nil
}

// UpdatePhones edits contact numbers without touching status. Allowed in
// any pre-completion state.
func (s *Service) UpdatePhones(ctx context.Context, actor *identity.User, id uuid.UUID, patientPhone, stkPhone string) (*Referral, error) {
	if err := auth.RequireRole(actor, identity.RoleAdmin); err != nil {
		return nil, err
	}

	if strings.TrimSpace(patientPhone) == "" || strings.TrimSpace(stkPhone) == "" {
		return nil, fmt.Errorf("%w: both phone numbers are required", ErrValidation)
	}

	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.Status.Terminal() {
		return nil, fmt.Errorf("%w: referral is %s", ErrInvalidTransition, ref.Status)
	}

	updated, err := s.repo.UpdatePhones(ctx, id, patientPhone, stkPhone)
	if err != nil {
		return nil, fmt.Errorf("update phones: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, "update_phone_numbers", id.String(), map[string]any{
		"patient_phone": patientPhone,
		"stk_phone":     stkPhone,
	})

	return updated, nil
}

// UpdateStatus applies an explicit transition. Only forward-legal moves
// in the lifecycle graph are accepted; reaching paid or completed stamps
// the corresponding timestamps.
func (s *Service) UpdateStatus(ctx context.Context, actor *identity.User, id uuid.UUID, target Status) (*Referral, error) {
	if err := auth.RequireRole(actor, identity.RolePhysician, identity.RoleAdmin); err != nil {
		return nil, err
	}

	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}
	target = target.Normalize()

	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(ref.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ref.Status, target)
	}

	now := time.Now()
	var paidAt, completedAt *time.Time
	switch target {
	case StatusPaid:
		paidAt = &now
		completedAt = &now
	case StatusCompleted:
		completedAt = &now
	}

	updated, err := s.repo.UpdateStatus(ctx, id, ref.Status, target, paidAt, completedAt)
	if err != nil {
		if errors.Is(err, ErrReferralNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update referral status: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, "update_referral_status", id.String(), map[string]any{
		"from": string(ref.Status),
		"to":   string(target),
	})

	return updated, nil
}

// GetByToken is the patient-facing lookup by shared code; it is not
// role-gated.
func (s *Service) GetByToken(ctx context.Context, token string) (*Referral, error) {
	return s.repo.GetByToken(ctx, strings.ToUpper(strings.TrimSpace(token)))
}

func (s *Service) GetByID(ctx context.Context, actor *identity.User, id uuid.UUID) (*Referral, error) {
	if err := auth.RequireRole(actor, identity.RolePhysician, identity.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// ListByPhysician returns one physician's referrals. Physicians can only
// see their own; admins see anyone's.
func (s *Service) ListByPhysician(ctx context.Context, actor *identity.User, physicianID uuid.UUID) ([]Referral, error) {
	if err := auth.RequireRole(actor, identity.RolePhysician, identity.RoleAdmin); err != nil {
		return nil, err
	}

	if actor.Role == identity.RolePhysician {
		own, err := s.physicians.GetPhysicianByUser(ctx, actor.ID)
		if err != nil {
			return nil, auth.ErrForbidden
		}
		if own.ID != physicianID {
			return nil, auth.ErrForbidden
		}
	}

	return s.repo.ListByPhysician(ctx, physicianID)
}

func (s *Service) ListByStatus(ctx context.Context, actor *identity.User, status Status) ([]Referral, error) {
	if err := auth.RequireRole(actor, identity.RolePhysician, identity.RoleAdmin); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.repo.ListByStatus(ctx, status)
}

// ListOpenForAdmin returns the admin work queue: everything that still
// needs biodata or payment.
func (s *Service) ListOpenForAdmin(ctx context.Context, actor *identity.User) ([]Referral, error) {
	if err := auth.RequireRole(actor, identity.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListOpenForAdmin(ctx)
}

func (s *Service) ListCompleted(ctx context.Context, actor *identity.User) ([]Referral, error) {
	if err := auth.RequireRole(actor, identity.RolePhysician, identity.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListCompleted(ctx)
}
