package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/payflow/internal/config"
	"github.com/ivankudzin/payflow/internal/infra/provider"
	"github.com/ivankudzin/payflow/internal/jobs/expiry"
	pgrepo "github.com/ivankudzin/payflow/internal/repo/postgres"
	redrepo "github.com/ivankudzin/payflow/internal/repo/redis"
	authsvc "github.com/ivankudzin/payflow/internal/services/auth"
	catalogsvc "github.com/ivankudzin/payflow/internal/services/catalog"
	checkoutsvc "github.com/ivankudzin/payflow/internal/services/checkout"
	entsvc "github.com/ivankudzin/payflow/internal/services/entitlements"
	reconcilesvc "github.com/ivankudzin/payflow/internal/services/reconcile"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler
	expiryJob  *expiry.Job
	sweepStop  context.CancelFunc
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	catalogRepo := pgrepo.NewCatalogRepo(pool)
	intentRepo := pgrepo.NewIntentRepo(pool)
	enrollmentRepo := pgrepo.NewEnrollmentRepo(pool)
	orderRepo := pgrepo.NewOrderRepo(pool)
	txManager := pgrepo.NewTxManager(pool)
	catalogCache := redrepo.NewCatalogCacheRepo(redisClient)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)

	providerClient := provider.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	webhookVerifier := provider.NewVerifier(cfg.Provider.WebhookSecret)

	catalogService := catalogsvc.NewService(catalogRepo, catalogsvc.Config{
		CacheTTL: cfg.Catalog.CacheTTL,
	})
	catalogService.AttachCache(catalogCache)

	checkoutService := checkoutsvc.NewService(checkoutsvc.Dependencies{
		Catalog:     catalogService,
		Intents:     intentRepo,
		Enrollments: enrollmentRepo,
		Provider:    providerClient,
	})

	reconcileService := reconcilesvc.NewService(reconcilesvc.Dependencies{
		Tx:          txManager,
		Intents:     intentRepo,
		Enrollments: enrollmentRepo,
		Orders:      orderRepo,
	})

	entitlementService := entsvc.NewService(entsvc.Dependencies{
		Catalog:     catalogService,
		Enrollments: enrollmentRepo,
		Orders:      orderRepo,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		CheckoutService:     checkoutService,
		ReconcileService:    reconcileService,
		EntitlementService:  entitlementService,
		JWTManager:          jwtManager,
		WebhookVerifier:     webhookVerifier,
		SignatureHeader:     cfg.Provider.SignatureHeader,
		NotFoundRetryWindow: cfg.Reconcile.NotFoundRetryWindow,
		Logger:              log,
	})

	var expiryJob *expiry.Job
	if pool != nil {
		expiryJob = expiry.New(intentRepo, cfg.Reconcile.StalePendingAfter, log)
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		httpRouter: r,
		expiryJob:  expiryJob,
	}, nil
}

func (a *App) Run() error {
	sweepCtx, cancel := context.WithCancel(context.Background())
	a.sweepStop = cancel
	go a.runSweepLoop(sweepCtx)

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) runSweepLoop(ctx context.Context) {
	if a.expiryJob == nil {
		return
	}

	interval := a.cfg.Reconcile.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.expiryJob.Run(ctx); err != nil {
				a.logger.Error("stale intent sweep failed", zap.Error(err))
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if a.sweepStop != nil {
		a.sweepStop()
	}
	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
