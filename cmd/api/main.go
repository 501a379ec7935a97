// Command api serves the job pricing and parts procurement HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobflow_backend/internal/adapters/storage"
	"jobflow_backend/internal/events"
	apphttp "jobflow_backend/internal/http"
	"jobflow_backend/internal/http/router"
	"jobflow_backend/internal/jobs"
	"jobflow_backend/internal/ledger"
	"jobflow_backend/internal/notification"
	"jobflow_backend/internal/parts"
	"jobflow_backend/internal/scheduler"
	"jobflow_backend/internal/uploads"
	"jobflow_backend/internal/verification"
	"jobflow_backend/internal/vision"
	"jobflow_backend/migrations"
	"jobflow_backend/platform/config"
	"jobflow_backend/platform/db"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/metrics"
	"jobflow_backend/platform/validator"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info("starting api", "env", cfg.Env, "addr", cfg.HTTPAddr)

	if err := db.Migrate(ctx, cfg, migrations.FS, log); err != nil {
		return err
	}
	pool, err := db.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	bus := events.NewInMemoryBus(log)
	defer bus.Wait()
	reg := metrics.NewRegistry()
	val := validator.New()
	health := map[string]apphttp.HealthChecker{"postgres": pool}

	var expiry *scheduler.Client
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; approval expiry relies on the scheduler sweep")
	} else {
		if expiry, err = scheduler.NewClient(cfg); err != nil {
			return fmt.Errorf("expiry scheduler: %w", err)
		}
		defer func() { _ = expiry.Close() }()

		opt, err := redis.ParseURL(cfg.GetRedisURL())
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer func() { _ = rdb.Close() }()
		health["redis"] = apphttp.HealthCheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}

	jobsModule := jobs.NewModule(pool, log)
	jobsRepo := jobsModule.Repository()

	opts := verification.Options{Metrics: reg}
	if expiry != nil {
		opts.Expiry = expiry
	}
	if store != nil && cfg.IsVisionEnabled() {
		analyzer, err := vision.NewAnalyzer(ctx, vision.Config{
			APIKey: cfg.GetGeminiAPIKey(),
			Model:  cfg.GetVisionModel(),
			Bucket: cfg.GetMinioBucketJobEvidence(),
		}, store, log)
		if err != nil {
			return fmt.Errorf("scope analyzer: %w", err)
		}
		opts.Analyzer = analyzer
		log.Info("scope analyzer enabled", "model", cfg.GetVisionModel())
	}
	verificationModule := verification.NewModule(pool, jobsRepo, cfg, bus, val, opts, log)

	partsModule, err := parts.NewModule(pool, jobsRepo, cfg, bus, val, reg, log)
	if err != nil {
		return fmt.Errorf("parts module: %w", err)
	}

	notifications, err := notification.Assemble(pool, jobsRepo, cfg, reg, log)
	if err != nil {
		return err
	}
	notifications.RegisterHandlers(bus)

	var publisher ledger.Publisher
	if cfg.IsKafkaEnabled() {
		kp := ledger.NewKafkaPublisher(cfg.GetKafkaBrokers(), cfg.GetKafkaExpenseTopic())
		defer func() { _ = kp.Close() }()
		publisher = kp
		log.Info("ledger publishing to kafka", "topic", cfg.GetKafkaExpenseTopic())
	}
	ledger.New(ledger.NewRepository(pool), publisher, reg, log).RegisterHandlers(bus)

	modules := []apphttp.Module{jobsModule, verificationModule, partsModule}
	if store != nil {
		up, err := uploads.NewModule(store, jobsRepo, cfg.GetMinioBucketJobEvidence(), cfg.GetMinIOMaxFileSize(), val)
		if err != nil {
			return fmt.Errorf("uploads module: %w", err)
		}
		modules = append(modules, up)
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: router.New(&apphttp.App{
			Config:   cfg,
			Logger:   log,
			Health:   health,
			Metrics:  reg,
			EventBus: bus,
			Modules:  modules,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, log)
}

// openStorage returns nil when MinIO is not configured; uploads and media
// analysis are then unavailable.
func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage.MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; uploads and media analysis disabled")
		return nil, nil
	}
	store, err := storage.NewMinIOService(cfg)
	if err != nil {
		return nil, err
	}
	bucket := cfg.GetMinioBucketJobEvidence()
	if err := db.Retry(ctx, log, "ensure bucket "+bucket, func(ctx context.Context) error {
		return store.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		return nil, err
	}
	log.Info("storage ready", "bucket", bucket)
	return store, nil
}

func serve(ctx context.Context, srv *http.Server, log *logger.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
