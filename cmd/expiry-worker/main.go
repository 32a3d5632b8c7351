package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/afyalink/referral-service/internal/audit"
	"github.com/afyalink/referral-service/internal/booking"
	"github.com/afyalink/referral-service/internal/config"
	"github.com/afyalink/referral-service/internal/db"
	"github.com/afyalink/referral-service/internal/identity"
	"github.com/afyalink/referral-service/internal/logging"
	"github.com/afyalink/referral-service/internal/notify"
	redisclient "github.com/afyalink/referral-service/internal/redis"
)

// sweepLock keeps concurrent worker replicas from sweeping the same
// bookings; the CAS transition makes overlap harmless anyway, the lock
// just avoids wasted scans.
const sweepLock = "worker:expire-bookings"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logging.New("expiry-worker", cfg.Env)
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("expiry-worker starting up")

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

	repo := booking.NewPgRepository(pgPool)
	identityRepo := identity.NewPgRepository(pgPool)
	notifyRepo := notify.NewPgRepository(pgPool)
	sink := audit.NewPgRecorder(pgPool, log)
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	svc := booking.NewService(repo, identityRepo, notifyRepo, sink, cfg.BookingTTL, log)

	runOnce(rootCtx, svc, locker, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, locker, log)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, locker redisclient.Locker, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	err := locker.WithLock(runCtx, sweepLock, func(ctx context.Context) error {
		n, err := svc.ExpireDue(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("expired", n).Dur("took", time.Since(start)).Msg("expiry run complete")
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		log.Info().Msg("another worker holds the sweep lock, skipping run")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("expiry run error")
	}
}
