package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/afyalink/referral-service/internal/audit"
	"github.com/afyalink/referral-service/internal/auth"
	"github.com/afyalink/referral-service/internal/booking"
	"github.com/afyalink/referral-service/internal/daraja"
	"github.com/afyalink/referral-service/internal/identity"
	redisclient "github.com/afyalink/referral-service/internal/redis"
	"github.com/afyalink/referral-service/internal/referral"
)

var (
	// ErrNotAwaitingPayment rejects a push for a referral or booking that
	// is not in pending-payment.
	ErrNotAwaitingPayment = errors.New("not awaiting payment")

	// ErrMissingSTKPhone rejects a push when no prompt phone is on file.
	ErrMissingSTKPhone = errors.New("no stk phone number on file")

	// ErrPushRejected carries the gateway's synchronous rejection.
	ErrPushRejected = errors.New("payment prompt rejected by gateway")
)

// Gateway is the slice of the payment gateway the initiator needs.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, phone string, amount int, reference, description string) (*daraja.PushResult, error)
}

// Initiator sends payment prompts and records one ledger entry per
// accepted push. A per-target lock keeps an admin double-click from
// racing two prompts to the same handset.
type Initiator struct {
	gateway   Gateway
	payments  Repository
	referrals referral.Repository
	bookings  booking.Repository
	locker    redisclient.Locker
	audit     audit.Sink
	amount    int
	log       zerolog.Logger
	now       func() time.Time
}

func NewInitiator(
	gateway Gateway,
	payments Repository,
	referrals referral.Repository,
	bookings booking.Repository,
	locker redisclient.Locker,
	sink audit.Sink,
	amount int,
	log zerolog.Logger,
) *Initiator {
	return &Initiator{
		gateway:   gateway,
		payments:  payments,
		referrals: referrals,
		bookings:  bookings,
		locker:    locker,
		audit:     sink,
		amount:    amount,
		log:       log.With().Str("component", "initiator").Logger(),
		now:       time.Now,
	}
}

// SendReferralPush prompts the referral's stk phone for the facility fee.
// Admin only.
func (i *Initiator) SendReferralPush(ctx context.Context, actor *identity.User, referralID uuid.UUID) (*daraja.PushResult, error) {
	if err := auth.RequireRole(actor, identity.RoleAdmin); err != nil {
		return nil, err
	}

	var result *daraja.PushResult
	err := i.locker.WithLock(ctx, "push:referral:"+referralID.String(), func(ctx context.Context) error {
		ref, err := i.referrals.GetByID(ctx, referralID)
		if err != nil {
			return err
		}
		if ref.Status != referral.StatusPendingPayment {
			return fmt.Errorf("%w: referral is %s", ErrNotAwaitingPayment, ref.Status)
		}
		if ref.STKPhoneNumber == nil || *ref.STKPhoneNumber == "" {
			return ErrMissingSTKPhone
		}

		res, err := i.gateway.InitiateSTKPush(ctx, *ref.STKPhoneNumber, i.amount, ref.ReferralToken, "Referral facility fee")
		if err != nil {
			return err
		}
		if !res.Accepted {
			return fmt.Errorf("%w: %s", ErrPushRejected, res.Message)
		}

		entry := NewReferralPayment(ref.ID, *ref.STKPhoneNumber, i.amount, res.CheckoutRequestID)
		if _, err := i.payments.Create(ctx, entry); err != nil {
			// The prompt is already on the handset; without this row the
			// callback cannot be reconciled.
			i.log.Error().Err(err).
				Str("referral_id", ref.ID.String()).
				Str("correlation_id", res.CheckoutRequestID).
				Msg("ledger write failed after accepted push; callback will be orphaned")
			return fmt.Errorf("record payment: %w", err)
		}
		if _, err := i.referrals.IncrementPushCount(ctx, ref.ID); err != nil {
			i.log.Warn().Err(err).Str("referral_id", ref.ID.String()).Msg("increment push count")
		}

		i.audit.Record(ctx, &actor.ID, "send_stk_push", ref.ID.String(), map[string]any{
			"target":         "referral",
			"phone":          *ref.STKPhoneNumber,
			"amount":         i.amount,
			"correlation_id": res.CheckoutRequestID,
		})
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SendBookingPush prompts the booking's stk phone for the booking fee.
// Admin only. Expired bookings are rejected before any gateway call.
func (i *Initiator) SendBookingPush(ctx context.Context, actor *identity.User, bookingID uuid.UUID) (*daraja.PushResult, error) {
	if err := auth.RequireRole(actor, identity.RoleAdmin); err != nil {
		return nil, err
	}

	var result *daraja.PushResult
	err := i.locker.WithLock(ctx, "push:booking:"+bookingID.String(), func(ctx context.Context) error {
		bk, err := i.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if bk.Status != booking.StatusPendingPayment {
			return fmt.Errorf("%w: booking is %s", ErrNotAwaitingPayment, bk.Status)
		}
		if bk.Expired(i.now()) {
			return booking.ErrBookingExpired
		}
		if bk.STKPhoneNumber == "" {
			return ErrMissingSTKPhone
		}

		amount := bk.PaymentAmount
		if amount <= 0 {
			amount = i.amount
		}
		res, err := i.gateway.InitiateSTKPush(ctx, bk.STKPhoneNumber, amount, bk.ID.String(), "Clinic booking fee")
		if err != nil {
			return err
		}
		if !res.Accepted {
			return fmt.Errorf("%w: %s", ErrPushRejected, res.Message)
		}

		entry := NewBookingPayment(bk.ID, bk.STKPhoneNumber, amount, res.CheckoutRequestID)
		if _, err := i.payments.Create(ctx, entry); err != nil {
			i.log.Error().Err(err).
				Str("booking_id", bk.ID.String()).
				Str("correlation_id", res.CheckoutRequestID).
				Msg("ledger write failed after accepted push; callback will be orphaned")
			return fmt.Errorf("record payment: %w", err)
		}
		if _, err := i.bookings.IncrementPushCount(ctx, bk.ID); err != nil {
			i.log.Warn().Err(err).Str("booking_id", bk.ID.String()).Msg("increment push count")
		}

		i.audit.Record(ctx, &actor.ID, "send_stk_push", bk.ID.String(), map[string]any{
			"target":         "booking",
			"phone":          bk.STKPhoneNumber,
			"amount":         amount,
			"correlation_id": res.CheckoutRequestID,
		})
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
