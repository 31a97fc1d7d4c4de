package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/rentcheck/internal"
	"github.com/DukeRupert/rentcheck/internal/billing"
	"github.com/DukeRupert/rentcheck/internal/email"
	"github.com/DukeRupert/rentcheck/internal/handler"
	"github.com/DukeRupert/rentcheck/internal/idempotency"
	"github.com/DukeRupert/rentcheck/internal/jobs"
	"github.com/DukeRupert/rentcheck/internal/middleware"
	"github.com/DukeRupert/rentcheck/internal/notify"
	"github.com/DukeRupert/rentcheck/internal/repository"
	"github.com/DukeRupert/rentcheck/internal/service"
	"github.com/DukeRupert/rentcheck/internal/storage"
	"github.com/DukeRupert/rentcheck/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := internal.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	repo := repository.New(db)

	// ==========================================================================
	// Storage
	// ==========================================================================

	store, err := storage.New(storage.Config{
		Provider: cfg.StorageProvider,
		Local: storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		},
		R2: storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// ==========================================================================
	// Collaborators
	// ==========================================================================

	var payments service.PaymentGateway
	var verifier billing.WebhookVerifier
	if cfg.StripeSecretKey != "" {
		gw := billing.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		payments = gw
		if cfg.StripeWebhookSecret != "" {
			verifier = gw
		}
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, using stub payment gateway")
		payments = billing.NewStubGateway()
	}

	var publisher notify.Publisher
	if cfg.SNSTopicARN != "" {
		snsPub, err := notify.NewSNSPublisher(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			return fmt.Errorf("sns initialization failed: %w", err)
		}
		publisher = snsPub
	}

	enqueuer := worker.NewEnqueuer(repo)
	notifier := notify.NewDispatcher(enqueuer, publisher, logger)

	inspections := service.NewPostgresStore(db, logger)
	inspectionService := service.NewInspectionService(service.Dependencies{
		Store:       inspections,
		Attachments: service.NewAttachmentStore(store, service.NewImagingProcessor(), enqueuer, logger),
		Bookings:    service.NewBookingLookup(repo),
		Payments:    payments,
		Notifier:    notifier,
		Purger:      enqueuer,
	}, service.WorkflowConfig{
		MinReturnPhotos:   cfg.ReturnPhotosMin,
		MaxReturnPhotos:   cfg.ReturnPhotosMax,
		SaveRetries:       cfg.SaveRetries,
		UploadConcurrency: cfg.UploadConcurrency,
		ResolverRoles:     cfg.ResolverRoles,
		Currency:          cfg.InspectionCurrency,
		NotifyTimeout:     cfg.NotifyTimeout,
	}, logger)

	// ==========================================================================
	// Background worker
	// ==========================================================================

	var bgWorker *worker.Worker
	if cfg.WorkerEnabled {
		emailService, err := newEmailService(cfg, logger)
		if err != nil {
			return fmt.Errorf("email initialization failed: %w", err)
		}

		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout

		bgWorker, err = worker.New(db, repo, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		bgWorker.Register(jobs.NewSendNotificationHandler(emailService, logger))
		bgWorker.Register(jobs.NewPurgeAttachmentsHandler(store, inspections, logger))
		enqueuer.WakeWith(bgWorker.Wake)
	}

	// ==========================================================================
	// Middleware
	// ==========================================================================

	healthChecks := map[string]handler.HealthCheck{"database": db.PingContext}

	var idemStore idempotency.Store
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = idempotency.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer redisClient.Close()
		idemStore = idempotency.NewRedisStore(redisClient, cfg.IdempotencyTTL, time.Minute)
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	} else {
		logger.Warn("REDIS_URL not set, Idempotency-Key header is ignored")
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimitRequests > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		defer limiter.Stop()
	}

	actorMw := middleware.NewActorMiddleware(cfg.ResolverRoles, logger)
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, logger)
	idempotencyMw := middleware.NewIdempotencyMiddleware(idemStore, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(cfg.IsProduction())

	read := func(h http.Handler) http.Handler {
		return middleware.Chain(h, actorMw.RequireActor)
	}
	write := func(h http.Handler) http.Handler {
		return middleware.Chain(h, actorMw.RequireActor, rateLimitMw.Limit, idempotencyMw.Handler)
	}

	// ==========================================================================
	// Routes
	// ==========================================================================

	mux := http.NewServeMux()

	handler.NewInspectionHandler(inspectionService, cfg.ReturnPhotosMax, logger).RegisterRoutes(mux, read, write)
	handler.NewWebhookHandler(verifier, inspectionService, logger).RegisterRoutes(mux)
	handler.NewHealthHandler(healthChecks, logger).RegisterRoutes(mux)

	if local, ok := store.(*storage.LocalStorage); ok {
		files := http.FileServer(http.Dir(local.Root()))
		mux.Handle("GET /files/", http.StripPrefix("/files/", files))
	}

	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		logger.Warn("METRICS_USERNAME/METRICS_PASSWORD not set, /metrics is unprotected")
	}
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: middleware.Chain(mux,
			securityMw.Handler,
			loggingMw.Handler,
			middleware.Instrument,
			actorMw.WithActor,
		),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if bgWorker != nil {
		bgWorker.Start(workerCtx)
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverErr:
		logger.Error("Server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	// In-flight requests may still have enqueued jobs; stop the worker last.
	if bgWorker != nil {
		bgWorker.Stop()
		stopWorker()
	}

	logger.Info("Server stopped")
	return nil
}

func newEmailService(cfg *internal.Config, logger *slog.Logger) (email.EmailService, error) {
	if cfg.EmailProvider == "log" {
		return email.NewLogEmailService(logger), nil
	}
	return email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
