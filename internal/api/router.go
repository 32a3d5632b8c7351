package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/afyalink/referral-service/internal/audit"
	"github.com/afyalink/referral-service/internal/auth"
	"github.com/afyalink/referral-service/internal/booking"
	"github.com/afyalink/referral-service/internal/identity"
	"github.com/afyalink/referral-service/internal/notify"
	"github.com/afyalink/referral-service/internal/payment"
	"github.com/afyalink/referral-service/internal/referral"
)

type RouterConfig struct {
	Referrals     *referral.Service
	Bookings      *booking.Service
	Initiator     *payment.Initiator
	Reconciler    *payment.Reconciler
	Payments      payment.Repository
	Notifications notify.Repository
	Identity      identity.Repository
	Audit         audit.Lister
	SMS           notify.SMSSender
	Resolver      auth.Resolver
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Log           zerolog.Logger
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Unauthenticated: the gateway callback authenticates by correlation
	// id, the token lookup is the patient's tracking link.
	r.Post("/api/payments/callback", paymentCallbackHandler(cfg.Reconciler, cfg.SMS, cfg.Log))
	r.Get("/api/referrals/token/{token}", getReferralByTokenHandler(cfg.Referrals))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Resolver))

		r.Post("/api/referrals", createReferralHandler(cfg.Referrals))
		r.Get("/api/referrals", listReferralsHandler(cfg.Referrals))
		r.Get("/api/referrals/{id}", getReferralHandler(cfg.Referrals))
		r.Patch("/api/referrals/{id}/status", updateReferralStatusHandler(cfg.Referrals))
		r.Post("/api/referrals/{id}/biodata", attachBiodataHandler(cfg.Referrals, cfg.Initiator, cfg.Log))
		r.Patch("/api/referrals/{id}/phones", updateReferralPhonesHandler(cfg.Referrals))
		r.Post("/api/referrals/{id}/payment", sendReferralPushHandler(cfg.Initiator))
		r.Post("/api/referrals/{id}/payment/retry", sendReferralPushHandler(cfg.Initiator))
		r.Get("/api/referrals/{id}/payments", listReferralPaymentsHandler(cfg.Payments))

		r.Post("/api/bookings", createBookingHandler(cfg.Bookings))
		r.Get("/api/bookings", listBookingsHandler(cfg.Bookings))
		r.Get("/api/bookings/{id}", getBookingHandler(cfg.Bookings))
		r.Patch("/api/bookings/{id}/status", updateBookingStatusHandler(cfg.Bookings))
		r.Post("/api/bookings/{id}/payment", sendBookingPushHandler(cfg.Initiator))

		r.Get("/api/audit", listAuditHandler(cfg.Audit))
		r.Get("/api/physicians/license/{licenseID}", getPhysicianByLicenseHandler(cfg.Identity))

		r.Get("/api/notifications", listNotificationsHandler(cfg.Notifications))
		r.Post("/api/notifications/{id}/read", markNotificationReadHandler(cfg.Notifications))
		r.Post("/api/notifications/read-all", markAllNotificationsReadHandler(cfg.Notifications))
	})

	return r
}
