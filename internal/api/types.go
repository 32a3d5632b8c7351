package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/afyalink/referral-service/internal/audit"
	"github.com/afyalink/referral-service/internal/booking"
	"github.com/afyalink/referral-service/internal/identity"
	"github.com/afyalink/referral-service/internal/notify"
	"github.com/afyalink/referral-service/internal/payment"
	"github.com/afyalink/referral-service/internal/referral"
)

type CreateReferralRequest struct {
	PhysicianID        string  `json:"physician_id" validate:"required,uuid4"`
	PatientName        string  `json:"patient_name" validate:"required"`
	PatientID          *string `json:"patient_id,omitempty"`
	PatientNationalID  *string `json:"patient_national_id,omitempty"`
	PatientDateOfBirth *string `json:"patient_date_of_birth,omitempty"`
	MedicalHistory     string  `json:"medical_history"`
	LabResults         string  `json:"lab_results" validate:"required"`
	Diagnosis          string  `json:"diagnosis" validate:"required"`
	ReferringHospital  string  `json:"referring_hospital" validate:"required"`
	ReceivingFacility  string  `json:"receiving_facility" validate:"required"`
	Priority           string  `json:"priority" validate:"required"`
}

type BiodataRequest struct {
	PatientPhone       string  `json:"patient_phone" validate:"required"`
	STKPhoneNumber     string  `json:"stk_phone_number" validate:"required"`
	PatientDateOfBirth *string `json:"patient_date_of_birth,omitempty"`
	PatientNationalID  *string `json:"patient_national_id,omitempty"`
	BookedDate         *string `json:"booked_date,omitempty"`
	BookedTime         *string `json:"booked_time,omitempty"`
}

type UpdatePhonesRequest struct {
	PatientPhone   string `json:"patient_phone" validate:"required"`
	STKPhoneNumber string `json:"stk_phone_number" validate:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type CreateBookingRequest struct {
	ReferralID     *string `json:"referral_id,omitempty" validate:"omitempty,uuid4"`
	PatientID      string  `json:"patient_id" validate:"required"`
	PatientPhone   string  `json:"patient_phone" validate:"required"`
	STKPhoneNumber string  `json:"stk_phone_number"`
	ClinicID       string  `json:"clinic_id" validate:"required"`
	SlotID         string  `json:"slot_id" validate:"required"`
	BookingDate    string  `json:"booking_date" validate:"required"`
	BookingTime    string  `json:"booking_time" validate:"required"`
	PaymentAmount  int     `json:"payment_amount" validate:"omitempty,gt=0"`
}

type ReferralResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PhysicianID        uuid.UUID  `json:"physician_id"`
	PatientName        string     `json:"patient_name"`
	PatientID          *string    `json:"patient_id,omitempty"`
	PatientNationalID  *string    `json:"patient_national_id,omitempty"`
	PatientDateOfBirth *string    `json:"patient_date_of_birth,omitempty"`
	MedicalHistory     string     `json:"medical_history"`
	LabResults         string     `json:"lab_results"`
	Diagnosis          string     `json:"diagnosis"`
	ReferringHospital  string     `json:"referring_hospital"`
	ReceivingFacility  string     `json:"receiving_facility"`
	Priority           string     `json:"priority"`
	Status             string     `json:"status"`
	ReferralToken      string     `json:"referral_token"`
	PatientPhone       *string    `json:"patient_phone,omitempty"`
	STKPhoneNumber     *string    `json:"stk_phone_number,omitempty"`
	BookedDate         *string    `json:"booked_date,omitempty"`
	BookedTime         *string    `json:"booked_time,omitempty"`
	STKSentCount       int        `json:"stk_sent_count"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toReferralResponse(ref *referral.Referral) ReferralResponse {
	return ReferralResponse{
		ID:                 ref.ID,
		PhysicianID:        ref.PhysicianID,
		PatientName:        ref.PatientName,
		PatientID:          ref.PatientID,
		PatientNationalID:  ref.PatientNationalID,
		PatientDateOfBirth: ref.PatientDateOfBirth,
		MedicalHistory:     ref.MedicalHistory,
		LabResults:         ref.LabResults,
		Diagnosis:          ref.Diagnosis,
		ReferringHospital:  ref.ReferringHospital,
		ReceivingFacility:  ref.ReceivingFacility,
		Priority:           string(ref.Priority),
		Status:             string(ref.Status),
		ReferralToken:      ref.ReferralToken,
		PatientPhone:       ref.PatientPhone,
		STKPhoneNumber:     ref.STKPhoneNumber,
		BookedDate:         ref.BookedDate,
		BookedTime:         ref.BookedTime,
		STKSentCount:       ref.STKSentCount,
		PaidAt:             ref.PaidAt,
		CompletedAt:        ref.CompletedAt,
		CreatedAt:          ref.CreatedAt,
		UpdatedAt:          ref.UpdatedAt,
	}
}

func toReferralResponses(refs []referral.Referral) []ReferralResponse {
	out := make([]ReferralResponse, 0, len(refs))
	for i := range refs {
		out = append(out, toReferralResponse(&refs[i]))
	}
	return out
}

type BookingResponse struct {
	ID             uuid.UUID  `json:"id"`
	ReferralID     *uuid.UUID `json:"referral_id,omitempty"`
	PatientID      string     `json:"patient_id"`
	PatientPhone   string     `json:"patient_phone"`
	STKPhoneNumber string     `json:"stk_phone_number,omitempty"`
	ClinicID       string     `json:"clinic_id"`
	SlotID         string     `json:"slot_id"`
	BookingDate    string     `json:"booking_date"`
	BookingTime    string     `json:"booking_time"`
	Status         string     `json:"status"`
	PaymentAmount  int        `json:"payment_amount"`
	ReceiptID      *string    `json:"receipt_id,omitempty"`
	STKSentCount   int        `json:"stk_sent_count"`
	ExpiresAt      time.Time  `json:"expires_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID,
		ReferralID:     b.ReferralID,
		PatientID:      b.PatientID,
		PatientPhone:   b.PatientPhone,
		STKPhoneNumber: b.STKPhoneNumber,
		ClinicID:       b.ClinicID,
		SlotID:         b.SlotID,
		BookingDate:    b.BookingDate,
		BookingTime:    b.BookingTime,
		Status:         string(b.Status),
		PaymentAmount:  b.PaymentAmount,
		ReceiptID:      b.ReceiptID,
		STKSentCount:   b.STKSentCount,
		ExpiresAt:      b.ExpiresAt,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func toBookingResponses(bks []booking.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bks))
	for i := range bks {
		out = append(out, toBookingResponse(&bks[i]))
	}
	return out
}

type PushResponse struct {
	Accepted          bool   `json:"accepted"`
	CheckoutRequestID string `json:"checkout_request_id"`
	MerchantRequestID string `json:"merchant_request_id,omitempty"`
	Message           string `json:"message,omitempty"`
}

type PaymentResponse struct {
	ID            uuid.UUID  `json:"id"`
	ReferralID    *uuid.UUID `json:"referral_id,omitempty"`
	BookingID     *uuid.UUID `json:"booking_id,omitempty"`
	PhoneNumber   string     `json:"phone_number"`
	Amount        int        `json:"amount"`
	Status        string     `json:"status"`
	CorrelationID string     `json:"correlation_id"`
	ReceiptID     *string    `json:"receipt_id,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toPaymentResponses(ps []payment.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, PaymentResponse{
			ID:            p.ID,
			ReferralID:    p.ReferralID,
			BookingID:     p.BookingID,
			PhoneNumber:   p.PhoneNumber,
			Amount:        p.Amount,
			Status:        string(p.Status),
			CorrelationID: p.CorrelationID,
			ReceiptID:     p.ReceiptID,
			ErrorMessage:  p.ErrorMessage,
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
		})
	}
	return out
}

type NotificationResponse struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"is_read"`
	BookingID  *string   `json:"booking_id,omitempty"`
	ReferralID *string   `json:"referral_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toNotificationResponses(ns []notify.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, NotificationResponse{
			ID:         n.ID,
			Type:       string(n.Type),
			Title:      n.Title,
			Message:    n.Message,
			IsRead:     n.IsRead,
			BookingID:  n.BookingID,
			ReferralID: n.ReferralID,
			CreatedAt:  n.CreatedAt,
		})
	}
	return out
}

type AuditEntryResponse struct {
	ID         int64           `json:"id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty"`
	Action     string          `json:"action"`
	ResourceID *string         `json:"resource_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toAuditEntryResponses(entries []audit.Entry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			ResourceID: e.ResourceID,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

type PhysicianResponse struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	LicenseID      string    `json:"license_id"`
	Hospital       string    `json:"hospital"`
	Specialization *string   `json:"specialization,omitempty"`
	IsVerified     bool      `json:"is_verified"`
}

func toPhysicianResponse(p *identity.Physician) PhysicianResponse {
	return PhysicianResponse{
		ID:             p.ID,
		UserID:         p.UserID,
		LicenseID:      p.LicenseID,
		Hospital:       p.Hospital,
		Specialization: p.Specialization,
		IsVerified:     p.IsVerified,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
