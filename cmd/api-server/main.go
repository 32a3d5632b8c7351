package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/afyalink/referral-service/internal/api"
	"github.com/afyalink/referral-service/internal/audit"
	"github.com/afyalink/referral-service/internal/auth"
	"github.com/afyalink/referral-service/internal/booking"
	"github.com/afyalink/referral-service/internal/config"
	"github.com/afyalink/referral-service/internal/daraja"
	"github.com/afyalink/referral-service/internal/db"
	"github.com/afyalink/referral-service/internal/identity"
	"github.com/afyalink/referral-service/internal/logging"
	"github.com/afyalink/referral-service/internal/notify"
	"github.com/afyalink/referral-service/internal/payment"
	redisclient "github.com/afyalink/referral-service/internal/redis"
	"github.com/afyalink/referral-service/internal/referral"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logging.New("api-server", cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns: int32(cfg.PGMaxConns),
		MinConns: int32(cfg.PGMinConns),
	})
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.Connect(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	identityRepo := identity.NewPgRepository(pgPool)
	referralRepo := referral.NewPgRepository(pgPool)
	bookingRepo := booking.NewPgRepository(pgPool)
	notifyRepo := notify.NewPgRepository(pgPool)
	paymentStore := payment.NewPgStore(pgPool)

	sink := audit.NewPgRecorder(pgPool, log)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)

	var resolver auth.Resolver
	if cfg.AuthMode == "static" {
		log.Warn().Msg("static auth mode enabled; do not use in production")
		resolver = auth.NewStaticResolver(identityRepo)
	} else {
		resolver = auth.NewJWTResolver(cfg.JWTSecret, identityRepo)
	}

	var sms notify.SMSSender = notify.NoopSMSSender{}
	if cfg.SMSWebhookURL != "" {
		sms = notify.NewWebhookSMSSender(cfg.SMSWebhookURL, cfg.SMSWebhookToken)
	}

	var gateway payment.Gateway
	if cfg.DarajaConfigured() {
		gateway = daraja.NewClient(daraja.Config{
			BaseURL:        cfg.DarajaBaseURL,
			ConsumerKey:    cfg.DarajaConsumerKey,
			ConsumerSecret: cfg.DarajaSecret,
			Shortcode:      cfg.DarajaShortcode,
			Passkey:        cfg.DarajaPasskey,
			CallbackURL:    cfg.DarajaCallbackURL,
			Timeout:        cfg.DarajaTimeout,
		}, log)
	} else {
		log.Warn().Msg("daraja credentials missing; payment pushes disabled")
		gateway = unavailableGateway{}
	}

	referralSvc := referral.NewService(referralRepo, identityRepo, sink, log)
	bookingSvc := booking.NewService(bookingRepo, identityRepo, notifyRepo, sink, cfg.BookingTTL, log)
	initiator := payment.NewInitiator(gateway, paymentStore, referralRepo, bookingRepo, locker, sink, cfg.PaymentAmount, log)
	reconciler := payment.NewReconciler(paymentStore, sink, log)

	router := api.NewRouter(api.RouterConfig{
		Referrals:     referralSvc,
		Bookings:      bookingSvc,
		Initiator:     initiator,
		Reconciler:    reconciler,
		Payments:      paymentStore,
		Notifications: notifyRepo,
		Identity:      identityRepo,
		Audit:         sink,
		SMS:           sms,
		Resolver:      resolver,
		PgPool:        pgPool,
		Redis:         rdb,
		Log:           log,
		Env:           cfg.Env,
		Version:       version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// unavailableGateway stands in when no gateway credentials are
// configured; push initiation fails cleanly instead of panicking.
type unavailableGateway struct{}

func (unavailableGateway) InitiateSTKPush(context.Context, string, int, string, string) (*daraja.PushResult, error) {
	return nil, daraja.ErrGatewayUnavailable
}
