package payment

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/afyalink/referral-service/internal/audit"
	"github.com/afyalink/referral-service/internal/booking"
	"github.com/afyalink/referral-service/internal/referral"
)

// Reconciler applies gateway callbacks to the payment ledger and the
// linked referral or booking. Every callback for the same correlation id
// is funneled through a row lock on the payment, so exactly one delivery
// transitions the ledger entry out of pending; the rest observe the
// settled state and report it back unchanged.
type Reconciler struct {
	store Store
	audit audit.Sink
	log   zerolog.Logger
	now   func() time.Time
}

func NewReconciler(store Store, sink audit.Sink, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		store: store,
		audit: sink,
		log:   log.With().Str("component", "reconciler").Logger(),
		now:   time.Now,
	}
}

// Process records the callback outcome atomically. It never returns an
// error for business conditions (unknown correlation id, duplicate
// delivery, late success); those are reported on the Outcome so the
// caller can still acknowledge the gateway.
func (r *Reconciler) Process(ctx context.Context, cb Callback) (*Outcome, error) {
	var out *Outcome
	err := r.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.PaymentForUpdate(ctx, cb.CorrelationID)
		if errors.Is(err, ErrPaymentNotFound) {
			r.log.Warn().
				Str("correlation_id", cb.CorrelationID).
				Int("result_code", cb.ResultCode).
				Msg("callback for unknown correlation id")
			out = &Outcome{PaymentMissing: true}
			return nil
		}
		if err != nil {
			return err
		}

		if p.Status != StatusPending {
			out = r.settledOutcome(ctx, tx, p)
			return nil
		}

		status := StatusFailed
		var receiptID, errMsg *string
		if cb.ResultCode == ResultCodeSuccess {
			status = StatusCompleted
			receiptID = cb.ReceiptID
		} else {
			desc := cb.ResultDesc
			errMsg = &desc
		}
		if err := tx.MarkPaymentOutcome(ctx, p.ID, status, receiptID, errMsg); err != nil {
			return err
		}

		out = &Outcome{
			PaymentID:   p.ID,
			Status:      status,
			ReferralID:  p.ReferralID,
			BookingID:   p.BookingID,
			PhoneNumber: p.PhoneNumber,
			Amount:      p.Amount,
		}

		if p.ReferralID != nil {
			if err := r.applyToReferral(ctx, tx, p, status, out); err != nil {
				return err
			}
		}
		if p.BookingID != nil {
			if err := r.applyToBooking(ctx, tx, p, status, receiptID, out); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out != nil && !out.PaymentMissing && !out.AlreadyProcessed {
		r.recordAudit(ctx, cb, out)
	}
	return out, nil
}

func (r *Reconciler) applyToReferral(ctx context.Context, tx Tx, p *Payment, status Status, out *Outcome) error {
	row, err := tx.GetReferral(ctx, *p.ReferralID)
	if errors.Is(err, referral.ErrReferralNotFound) {
		r.log.Error().
			Str("referral_id", p.ReferralID.String()).
			Str("correlation_id", p.CorrelationID).
			Msg("payment links to a missing referral")
		return nil
	}
	if err != nil {
		return err
	}
	out.PatientName = row.PatientName
	out.ReferralToken = row.ReferralToken

	if status != StatusCompleted {
		return nil
	}
	swapped, err := tx.MarkReferralPaid(ctx, row.ID, r.now())
	if err != nil {
		return err
	}
	if !swapped {
		r.log.Warn().
			Str("referral_id", row.ID.String()).
			Str("referral_status", string(row.Status)).
			Msg("success callback for referral no longer awaiting payment")
	}
	return nil
}

func (r *Reconciler) applyToBooking(ctx context.Context, tx Tx, p *Payment, status Status, receiptID *string, out *Outcome) error {
	row, err := tx.GetBooking(ctx, *p.BookingID)
	if errors.Is(err, booking.ErrBookingNotFound) {
		r.log.Error().
			Str("booking_id", p.BookingID.String()).
			Str("correlation_id", p.CorrelationID).
			Msg("payment links to a missing booking")
		return nil
	}
	if err != nil {
		return err
	}
	if row.ReferralID != nil {
		if ref, err := tx.GetReferral(ctx, *row.ReferralID); err == nil {
			out.PatientName = ref.PatientName
			out.ReferralToken = ref.ReferralToken
		}
	}

	if status != StatusCompleted {
		return nil
	}
	if row.ExpiresAt.Before(r.now()) {
		out.BookingPastExpiry = true
		r.log.Warn().
			Str("booking_id", row.ID.String()).
			Time("expires_at", row.ExpiresAt).
			Msg("payment completed after booking window; leaving booking for manual reconciliation")
		return nil
	}
	swapped, err := tx.ConfirmBooking(ctx, row.ID, receiptID)
	if err != nil {
		return err
	}
	if !swapped {
		r.log.Warn().
			Str("booking_id", row.ID.String()).
			Str("booking_status", string(row.Status)).
			Msg("success callback for booking no longer awaiting payment")
	}
	return nil
}

// settledOutcome rebuilds the response for a repeat delivery without
// touching any row.
func (r *Reconciler) settledOutcome(ctx context.Context, tx Tx, p *Payment) *Outcome {
	out := &Outcome{
		PaymentID:        p.ID,
		Status:           p.Status,
		AlreadyProcessed: true,
		ReferralID:       p.ReferralID,
		BookingID:        p.BookingID,
		PhoneNumber:      p.PhoneNumber,
		Amount:           p.Amount,
	}
	refID := p.ReferralID
	if refID == nil && p.BookingID != nil {
		if row, err := tx.GetBooking(ctx, *p.BookingID); err == nil {
			refID = row.ReferralID
		}
	}
	if refID != nil {
		if row, err := tx.GetReferral(ctx, *refID); err == nil {
			out.PatientName = row.PatientName
			out.ReferralToken = row.ReferralToken
		}
	}
	return out
}

func (r *Reconciler) recordAudit(ctx context.Context, cb Callback, out *Outcome) {
	details := map[string]any{
		"correlation_id": cb.CorrelationID,
		"result_code":    cb.ResultCode,
		"status":         string(out.Status),
		"amount":         out.Amount,
	}
	if out.BookingPastExpiry {
		details["past_expiry"] = true
	}
	r.audit.Record(ctx, nil, "reconcile_payment", out.PaymentID.String(), details)
}
