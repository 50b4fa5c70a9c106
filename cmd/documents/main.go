package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/richxcame/driver-verification/internal/documents"
	"github.com/richxcame/driver-verification/internal/notifications"
	"github.com/richxcame/driver-verification/pkg/cache"
	"github.com/richxcame/driver-verification/pkg/common"
	"github.com/richxcame/driver-verification/pkg/config"
	"github.com/richxcame/driver-verification/pkg/database"
	"github.com/richxcame/driver-verification/pkg/errors"
	"github.com/richxcame/driver-verification/pkg/eventbus"
	"github.com/richxcame/driver-verification/pkg/health"
	"github.com/richxcame/driver-verification/pkg/logger"
	"github.com/richxcame/driver-verification/pkg/middleware"
	"github.com/richxcame/driver-verification/pkg/ratelimit"
	redisclient "github.com/richxcame/driver-verification/pkg/redis"
	"github.com/richxcame/driver-verification/pkg/resilience"
	"github.com/richxcame/driver-verification/pkg/storage"
	"github.com/richxcame/driver-verification/pkg/tracing"
	"go.uber.org/zap"
)

const (
	serviceName = "documents-service"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	defer cfg.Close()

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if err := logger.Init(cfg.Server.Environment, cfg.Server.LogLevel); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting documents service",
		zap.String("service", serviceName),
		zap.String("version", cfg.Server.Version),
		zap.String("environment", cfg.Server.Environment),
	)

	sentryEnabled, err := errors.InitSentry(errors.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.Server.Environment,
		Release:          cfg.Server.Version,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		ServerName:       serviceName,
	})
	if err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else if sentryEnabled {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized")
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(rootCtx, tracing.Config{
			ServiceName:    serviceName,
			ServiceVersion: cfg.Server.Version,
			Environment:    cfg.Server.Environment,
			OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
			Enabled:        true,
		}, logger.Get())
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else if tp != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Failed to shutdown tracer", zap.Error(err))
				}
			}()
			logger.Info("OpenTelemetry tracing initialized")
		}
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(&cfg.Database); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	db, err := database.NewPostgresPool(rootCtx, &cfg.Database, time.Duration(cfg.Timeout.DatabaseQueryTimeout)*time.Second)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	redisClient, err := redisclient.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}()

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)
		logger.Info("Rate limiting enabled",
			zap.Int("default_limit", cfg.RateLimit.DefaultLimit),
			zap.Int("default_burst", cfg.RateLimit.DefaultBurst),
			zap.Duration("window", cfg.RateLimit.Window()),
		)
	}

	s3Store, err := storage.NewS3Storage(rootCtx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	var docStore storage.Storage = s3Store
	if cfg.Resilience.CircuitBreaker.Enabled {
		docStore = storage.NewResilientStorage(s3Store, resilience.SettingsFromConfig("object-storage",
			cfg.Resilience.CircuitBreaker.SettingsFor("object-storage")))
	}

	repo := documents.NewRepository(db)
	service := documents.NewService(repo, docStore, documents.DefaultCatalog(), documents.ServiceConfig{
		MaxUploadBytes: cfg.Storage.MaxUploadBytes(),
		PresignExpiry:  cfg.Storage.PresignExpiry(),
	})
	service.SetCache(cache.NewManager(redisClient))

	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		busCfg := eventbus.DefaultConfig()
		busCfg.URL = cfg.NATS.URL
		busCfg.Name = serviceName
		bus, err = eventbus.New(rootCtx, busCfg)
		if err != nil {
			logger.Warn("Failed to connect to NATS, domain events disabled", zap.Error(err))
		} else {
			defer bus.Close()
			service.SetEventPublisher(bus)
			if err := service.RegisterRecomputeConsumer(rootCtx, bus); err != nil {
				logger.Fatal("Failed to subscribe to recompute requests", zap.Error(err))
			}
			logger.Info("Event bus connected", zap.String("url", cfg.NATS.URL))
		}
	}

	if notifier := buildNotifier(rootCtx, cfg); notifier != nil {
		service.SetNotifier(notifier)
	}

	handler := documents.NewHandler(service)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RouteTimeouts(
		middleware.Seconds(cfg.Timeout.DefaultRequestTimeout, config.DefaultRequestTimeout),
		map[string]time.Duration{
			http.MethodPost + " /api/v1/documents": middleware.Seconds(cfg.Timeout.UploadRequestTimeout, config.DefaultUploadRequestTimeout),
		},
	))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.Use(middleware.Metrics(serviceName))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware(serviceName))
	}
	router.Use(middleware.ErrorHandler())

	router.GET("/healthz", common.LivenessProbe(serviceName, cfg.Server.Version))
	router.GET("/health/live", common.LivenessProbe(serviceName, cfg.Server.Version))

	checks := map[string]common.Check{
		"database": health.PingCheck("database", db),
		"redis":    health.Cached(health.PingCheck("redis", redisClient), 5*time.Second),
		"storage":  health.Cached(health.PingCheck("storage", docStore), 15*time.Second),
	}
	if bus != nil {
		checks["nats"] = health.ConnectedCheck("nats", bus.Connected)
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, cfg.Server.Version, checks))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": serviceName,
			"version": cfg.Server.Version,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(router,
		middleware.AuthMiddleware(cfg.JWT.Secret),
		middleware.RateLimit(limiter, cfg.RateLimit.Enabled),
		middleware.Idempotency(redisClient),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(),
		middleware.Seconds(cfg.Timeout.ShutdownTimeout, config.DefaultShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// buildNotifier wires the push and SMS providers that are configured.
// It returns nil when neither is.
func buildNotifier(ctx context.Context, cfg *config.Config) documents.Notifier {
	var (
		push notifications.PushSender
		sms  notifications.SMSSender
	)

	if cfg.Notifications.FirebaseCredentialsPath != "" {
		client, err := notifications.NewFirebaseClient(ctx, cfg.Notifications.FirebaseCredentialsPath)
		if err != nil {
			logger.Warn("Failed to initialize Firebase, push notifications disabled", zap.Error(err))
		} else {
			push = client
		}
	}

	if cfg.Notifications.TwilioAccountSID != "" && cfg.Notifications.TwilioFromNumber != "" {
		sms = notifications.NewTwilioClient(
			cfg.Notifications.TwilioAccountSID,
			cfg.Notifications.TwilioAuthToken,
			cfg.Notifications.TwilioFromNumber,
		)
	}

	if push == nil && sms == nil {
		logger.Info("No notification provider configured, review notifications disabled")
		return nil
	}

	breakers := cfg.Resilience.CircuitBreaker
	return notifications.NewDispatcher(push, sms,
		resilience.NewCircuitBreaker(resilience.SettingsFromConfig("firebase-fcm", breakers.SettingsFor("firebase-fcm"))),
		resilience.NewCircuitBreaker(resilience.SettingsFromConfig("twilio-sms", breakers.SettingsFor("twilio-sms"))),
	)
}
