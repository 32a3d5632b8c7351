package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/afyalink/referral-service/internal/auth"
	"github.com/afyalink/referral-service/internal/booking"
)

func createBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		var req CreateBookingRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		in := booking.CreateInput{
			PatientID:      req.PatientID,
			PatientPhone:   req.PatientPhone,
			STKPhoneNumber: req.STKPhoneNumber,
			ClinicID:       req.ClinicID,
			SlotID:         req.SlotID,
			BookingDate:    req.BookingDate,
			BookingTime:    req.BookingTime,
			PaymentAmount:  req.PaymentAmount,
		}
		if req.ReferralID != nil {
			refID, err := uuid.Parse(*req.ReferralID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_referral_id", "referral_id must be a valid UUID")
				return
			}
			in.ReferralID = &refID
		}

		b, err := svc.Create(r.Context(), actor, in)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func listBookingsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		q := r.URL.Query()

		if patientID := q.Get("patient_id"); patientID != "" {
			bks, err := svc.ListByPatient(r.Context(), actor, patientID)
			if err != nil {
				handleServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toBookingResponses(bks))
			return
		}

		if clinicID := q.Get("clinic_id"); clinicID != "" {
			bks, err := svc.ListByClinicDate(r.Context(), clinicID, q.Get("date"))
			if err != nil {
				handleServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toBookingResponses(bks))
			return
		}

		bks, err := svc.ListAll(r.Context(), actor)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponses(bks))
	}
}

func getBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		b, err := svc.GetByID(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func updateBookingStatusHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		var b *booking.Booking
		if booking.Status(req.Status) == booking.StatusConfirmed {
			b, err = svc.Confirm(r.Context(), actor, id)
		} else {
			b, err = svc.UpdateStatus(r.Context(), actor, id, booking.Status(req.Status))
		}
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}
