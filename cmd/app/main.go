// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyalty-core/internal/config"
	"loyalty-core/internal/domain/ports/adapter"
	pg "loyalty-core/internal/infra/db/postgres"
	"loyalty-core/internal/infra/logging"
	"loyalty-core/internal/infra/metrics"
	red "loyalty-core/internal/infra/redis"
	"loyalty-core/internal/infra/sched"
	"loyalty-core/internal/infra/security"
	"loyalty-core/internal/infra/web"
	"loyalty-core/internal/infra/worker"
	"loyalty-core/internal/usecase"
)

// auditRunner bridges the worker pool into the earn path's fire-and-forget
// audit appends.
type auditRunner struct{ pool *worker.Pool }

func (r auditRunner) Submit(task func(ctx context.Context) error) error {
	return r.pool.Submit(worker.Task(task))
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed secrets)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.PoolSize))
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 30*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- IP hashing ----
	hashKey := cfg.Abuse.IPHashKey
	if len(hashKey) < 16 {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("abuse.ip_hash_key must be at least 16 bytes")
		}
		logger.Warn().Msg("abuse.ip_hash_key not set; falling back to dev key (INSECURE)")
		hashKey = "0123456789abcdef0123456789abcdef"
	}
	hasher, err := security.NewIPHasher(hashKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("ip hasher")
	}

	// ---- Repositories ----
	programRepo := pg.NewProgramRepoCacheDecorator(pg.NewProgramRepo(pool), redisClient)
	membershipRepo := pg.NewMembershipRepo(pool)
	earnEventRepo := pg.NewEarnEventRepo(pool)
	redemptionRepo := pg.NewRedemptionRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- Audit worker pool ----
	auditPool := worker.NewPool(cfg.Abuse.AuditWorkers, logger)
	auditPool.Start(ctx)
	defer auditPool.Stop()

	// ---- Use cases ----
	// pass delivery integration is not wired in v1; field values still flow
	passSync := adapter.NoopPassSync{}
	earnUC := usecase.NewEarnUseCase(
		programRepo, membershipRepo, earnEventRepo, txm,
		hasher, rateLimiter,
		usecase.LimiterSettings{Limit: cfg.Abuse.ScanLimitPerIP, Window: cfg.Abuse.ScanWindow},
		auditRunner{pool: auditPool},
		passSync,
		logger,
	)
	redeemUC := usecase.NewRedemptionUseCase(programRepo, membershipRepo, redemptionRepo, txm, locker, passSync, logger)
	programUC := usecase.NewProgramUseCase(programRepo, txm, logger)
	memberUC := usecase.NewMembershipUseCase(programRepo, membershipRepo, logger)

	// ---- Display-expiry sweeper ----
	sweeper := sched.NewDisplayExpiryWorker(cfg.Scheduler.DisplayExpiryInterval, redeemUC, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- Program status gauge ----
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if counts, err := programUC.CountByStatus(ctx); err == nil {
					metrics.SetProgramsTotal(counts)
				}
			}
		}
	}()

	// ---- HTTP server ----
	adminSecret := cfg.Server.AdminSecret
	if adminSecret == "" {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("server.admin_secret is required")
		}
		adminSecret = "dev-only-secret"
	}
	auth := web.NewAuthManager(adminSecret, !cfg.Runtime.Dev, "", 30*time.Minute)
	srv := web.NewServer(earnUC, redeemUC, programUC, memberUC, auth, cfg.Server.AdminKey, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
