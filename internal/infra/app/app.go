package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/ecotrack-accounts/internal/core/port"
	"github.com/arklim/ecotrack-accounts/internal/infra/config"
	"github.com/arklim/ecotrack-accounts/internal/infra/database"
	firebaseinfra "github.com/arklim/ecotrack-accounts/internal/infra/firebase"
	kafkainfra "github.com/arklim/ecotrack-accounts/internal/infra/kafka"
	"github.com/arklim/ecotrack-accounts/internal/infra/logger"
	redisinfra "github.com/arklim/ecotrack-accounts/internal/infra/redis"
	"github.com/arklim/ecotrack-accounts/internal/infra/security"
	"github.com/arklim/ecotrack-accounts/internal/infra/telemetry"
	firebaserepo "github.com/arklim/ecotrack-accounts/internal/repository/firebase"
	firestorerepo "github.com/arklim/ecotrack-accounts/internal/repository/firestore"
	postgresrepo "github.com/arklim/ecotrack-accounts/internal/repository/postgres"
	redisrepo "github.com/arklim/ecotrack-accounts/internal/repository/redis"
	"github.com/arklim/ecotrack-accounts/internal/transport/http/middleware"
	"github.com/arklim/ecotrack-accounts/internal/transport/http/routes"
	"github.com/arklim/ecotrack-accounts/internal/usecase"
)

type storeBackend interface {
	port.DocumentStore
	port.HealthChecker
}

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	tracer   *telemetry.TracerProvider
	firebase *firebaseinfra.App
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.init(ctx); err != nil {
		a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *Application) init(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.tracer = tp

	accountMetrics, err := telemetry.NewAccountMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("init account metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	keyProvider, err := security.NewKeyProvider(cfg.App.Env, cfg.JWT.KeyDirectory)
	if err != nil {
		return fmt.Errorf("init key provider: %w", err)
	}
	issuer, err := security.NewTokenIssuer(keyProvider, cfg.App.Name, cfg.JWT.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("init token issuer: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("configure argon2: %w", err)
	}
	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{
		MinLength:           cfg.Password.MinLength,
		MinCharacterClasses: cfg.Password.MinCharacterClasses,
		MinStrengthScore:    cfg.Password.MinStrengthScore,
	})
	credentials := usecase.NewCredentialManager(hasher, issuer, policy)

	fb, err := firebaseinfra.NewApp(ctx, cfg.Firebase, cfg.Store.Driver == "firestore", log)
	if err != nil {
		return fmt.Errorf("init firebase: %w", err)
	}
	a.firebase = fb

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	var rateLimitStore port.RateLimitStore
	var cache routes.ReadinessChecker
	if cfg.Redis.Enabled {
		redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		a.redis = redisClient
		rateLimitStore = redisrepo.NewRateLimitRepository(redisClient.Client(), cfg.Redis.KeyPrefix)
		cache = redisClient
	} else {
		log.Info("redis disabled, rate limiting off")
	}

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			a.producer = producer
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	accounts := usecase.NewAccountService(
		firebaserepo.NewIdentityProvider(fb.Auth()),
		store,
		credentials,
		log,
		usecase.WithCollection(cfg.Store.Collection),
		usecase.WithCompensationPolicy(usecase.CompensationPolicy{
			MaxAttempts:     cfg.Compensation.MaxAttempts,
			InitialInterval: cfg.Compensation.InitialInterval,
			MaxInterval:     cfg.Compensation.MaxInterval,
			Timeout:         cfg.Compensation.Timeout,
		}),
		usecase.WithEventPublisher(eventPublisher),
		usecase.WithAccountMetrics(accountMetrics),
	)

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Accounts:    accounts,
		Tokens:      credentials,
		HTTPMetrics: httpMetrics,
		Store:       store,
	}
	// A nil *Client must not reach the interfaces below.
	if rateLimitStore != nil {
		deps.RateLimiter = middleware.NewRateLimiter(rateLimitStore, log)
		deps.Cache = cache
	}
	a.engine = routes.Register(deps)

	return nil
}

func (a *Application) openStore(ctx context.Context) (storeBackend, error) {
	switch a.cfg.Store.Driver {
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		a.pool = pool
		if err := postgresrepo.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		a.logger.Info("document store ready", zap.String("driver", "postgres"))
		return postgresrepo.NewDocumentStore(pool), nil
	default:
		a.logger.Info("document store ready", zap.String("driver", "firestore"))
		return firestorerepo.NewDocumentStore(a.firebase.Firestore()), nil
	}
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting accounts API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("store", a.cfg.Store.Driver),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		// In-flight compensations finish before the backends close.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second+a.cfg.Compensation.Timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		a.logger.Info("accounts API stopped")
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases backends in reverse order of construction.
func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.firebase != nil {
		if err := a.firebase.Close(); err != nil {
			a.logger.Warn("close firebase", zap.Error(err))
		}
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("shutdown tracer", zap.Error(err))
	}
}
