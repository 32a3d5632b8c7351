package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/afyalink/referral-service/internal/auth"
	"github.com/afyalink/referral-service/internal/daraja"
	"github.com/afyalink/referral-service/internal/identity"
	"github.com/afyalink/referral-service/internal/referral"
)

// referralPusher starts an STK push for a referral. Satisfied by
// *payment.Initiator.
type referralPusher interface {
	SendReferralPush(ctx context.Context, actor *identity.User, referralID uuid.UUID) (*daraja.PushResult, error)
}

func createReferralHandler(svc *referral.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		var req CreateReferralRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		physicianID, err := uuid.Parse(req.PhysicianID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_physician_id", "physician_id must be a valid UUID")
			return
		}

		ref, err := svc.Create(r.Context(), actor, referral.CreateInput{
			PhysicianID:        physicianID,
			PatientName:        req.PatientName,
			PatientID:          req.PatientID,
			PatientNationalID:  req.PatientNationalID,
			PatientDateOfBirth: req.PatientDateOfBirth,
			MedicalHistory:     req.MedicalHistory,
			LabResults:         req.LabResults,
			Diagnosis:          req.Diagnosis,
			ReferringHospital:  req.ReferringHospital,
			ReceivingFacility:  req.ReceivingFacility,
			Priority:           referral.Priority(req.Priority),
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toReferralResponse(ref))
	}
}

func listReferralsHandler(svc *referral.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		q := r.URL.Query()

		if physicianID := q.Get("physician_id"); physicianID != "" {
			id, err := uuid.Parse(physicianID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_physician_id", "physician_id must be a valid UUID")
				return
			}
			refs, err := svc.ListByPhysician(r.Context(), actor, id)
			if err != nil {
				handleServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toReferralResponses(refs))
			return
		}

		if status := q.Get("status"); status != "" {
			var refs []referral.Referral
			if referral.Status(status) == referral.StatusCompleted {
				refs, err = svc.ListCompleted(r.Context(), actor)
			} else {
				refs, err = svc.ListByStatus(r.Context(), actor, referral.Status(status))
			}
			if err != nil {
				handleServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toReferralResponses(refs))
			return
		}

		refs, err := svc.ListOpenForAdmin(r.Context(), actor)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReferralResponses(refs))
	}
}

func getReferralHandler(svc *referral.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_referral_id", "id must be a valid UUID")
			return
		}

		ref, err := svc.GetByID(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReferralResponse(ref))
	}
}

// getReferralByTokenHandler serves the patient tracking link. It is the
// one referral read mounted outside the auth middleware, keyed only by
// the short token.
func getReferralByTokenHandler(svc *referral.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		ref, err := svc.GetByToken(r.Context(), token)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReferralResponse(ref))
	}
}

func updateReferralStatusHandler(svc *referral.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_referral_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		ref, err := svc.UpdateStatus(r.Context(), actor, id, referral.Status(req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReferralResponse(ref))
	}
}

// attachBiodataHandler saves the admin-entered biodata and, on
// success, immediately starts the payment prompt. A gateway failure at
// that point does not undo the biodata: the referral is already in
// pending-payment and the push can be resent from the payment
// endpoint.
func attachBiodataHandler(svc *referral.Service, pusher referralPusher, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_referral_id", "id must be a valid UUID")
			return
		}

		var req BiodataRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		ref, err := svc.AttachBiodata(r.Context(), actor, id, referral.Biodata{
			PatientPhone:       req.PatientPhone,
			STKPhoneNumber:     req.STKPhoneNumber,
			PatientDateOfBirth: req.PatientDateOfBirth,
			PatientNationalID:  req.PatientNationalID,
			BookedDate:         req.BookedDate,
			BookedTime:         req.BookedTime,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		if pusher != nil {
			if _, err := pusher.SendReferralPush(r.Context(), actor, id); err != nil {
				log.Warn().Err(err).
					Str("referral_id", id.String()).
					Msg("payment push after biodata failed")
			}
		}

		writeJSON(w, http.StatusOK, toReferralResponse(ref))
	}
}

func updateReferralPhonesHandler(svc *referral.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_referral_id", "id must be a valid UUID")
			return
		}

		var req UpdatePhonesRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		ref, err := svc.UpdatePhones(r.Context(), actor, id, req.PatientPhone, req.STKPhoneNumber)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReferralResponse(ref))
	}
}
