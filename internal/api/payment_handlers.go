package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/afyalink/referral-service/internal/auth"
	"github.com/afyalink/referral-service/internal/identity"
	"github.com/afyalink/referral-service/internal/notify"
	"github.com/afyalink/referral-service/internal/payment"
)

func sendReferralPushHandler(initiator *payment.Initiator) http.HandlerFunc {
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

		res, err := initiator.SendReferralPush(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, PushResponse{
			Accepted:          res.Accepted,
			CheckoutRequestID: res.CheckoutRequestID,
			MerchantRequestID: res.MerchantRequestID,
			Message:           res.Message,
		})
	}
}

func sendBookingPushHandler(initiator *payment.Initiator) http.HandlerFunc {
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

		res, err := initiator.SendBookingPush(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, PushResponse{
			Accepted:          res.Accepted,
			CheckoutRequestID: res.CheckoutRequestID,
			MerchantRequestID: res.MerchantRequestID,
			Message:           res.Message,
		})
	}
}

func listReferralPaymentsHandler(payments payment.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.ActorFrom(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if err := auth.RequireRole(actor, identity.RoleAdmin); err != nil {
			handleServiceError(w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_referral_id", "id must be a valid UUID")
			return
		}

		ps, err := payments.ListByReferral(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPaymentResponses(ps))
	}
}

// stkCallbackEnvelope mirrors the gateway's nested callback body.
type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

func (e *stkCallbackEnvelope) receiptID() *string {
	for _, item := range e.Body.StkCallback.CallbackMetadata.Item {
		if item.Name != "MpesaReceiptNumber" {
			continue
		}
		if s, ok := item.Value.(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// paymentCallbackHandler receives the gateway's asynchronous result. It
// is unauthenticated: the correlation id in the body is the only thing
// that ties the delivery to a ledger entry, and an unknown id is simply
// acknowledged and dropped. The gateway is always answered 200 so it
// does not retry storms at us; a ResultCode of 1 asks it to redeliver
// later after a transient internal failure.
func paymentCallbackHandler(reconciler *payment.Reconciler, sms notify.SMSSender, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var env stkCallbackEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			log.Warn().Err(err).Msg("unparseable payment callback")
			writeJSON(w, http.StatusOK, callbackAck{ResultCode: 1, ResultDesc: "Invalid callback body"})
			return
		}

		cb := payment.Callback{
			CorrelationID: env.Body.StkCallback.CheckoutRequestID,
			ResultCode:    env.Body.StkCallback.ResultCode,
			ResultDesc:    env.Body.StkCallback.ResultDesc,
			ReceiptID:     env.receiptID(),
		}

		out, err := reconciler.Process(r.Context(), cb)
		if err != nil {
			log.Error().Err(err).
				Str("correlation_id", cb.CorrelationID).
				Msg("payment reconciliation failed")
			writeJSON(w, http.StatusOK, callbackAck{ResultCode: 1, ResultDesc: "Internal error, please retry"})
			return
		}

		if !out.PaymentMissing && !out.AlreadyProcessed {
			go sendPaymentSMS(sms, out, log)
		}

		writeJSON(w, http.StatusOK, callbackAck{ResultCode: 0, ResultDesc: "Accepted"})
	}
}

// sendPaymentSMS is fire and forget: a delivery failure is logged and
// never affects the acknowledgement already sent to the gateway.
func sendPaymentSMS(sms notify.SMSSender, out *payment.Outcome, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var body string
	switch out.Status {
	case payment.StatusCompleted:
		body = notify.PaymentConfirmationMessage(out.PatientName, out.Amount, out.ReferralToken)
	case payment.StatusFailed:
		body = notify.PaymentFailureMessage(out.PatientName, "payment was not completed")
	default:
		return
	}

	to := notify.NormalizePhone(out.PhoneNumber)
	if len(to) < 10 {
		log.Warn().Str("phone", out.PhoneNumber).Msg("cannot normalize phone for sms")
		return
	}
	if err := sms.Send(ctx, to, body); err != nil {
		log.Warn().Err(err).
			Str("provider", sms.ProviderID()).
			Str("payment_id", fmt.Sprint(out.PaymentID)).
			Msg("payment sms failed")
	}
}
