package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zfogg/vidshare/internal/auth"
	"github.com/zfogg/vidshare/internal/cache"
	"github.com/zfogg/vidshare/internal/config"
	"github.com/zfogg/vidshare/internal/database"
	"github.com/zfogg/vidshare/internal/email"
	"github.com/zfogg/vidshare/internal/handlers"
	"github.com/zfogg/vidshare/internal/logger"
	"github.com/zfogg/vidshare/internal/maintenance"
	"github.com/zfogg/vidshare/internal/media"
	"github.com/zfogg/vidshare/internal/metrics"
	"github.com/zfogg/vidshare/internal/middleware"
	"github.com/zfogg/vidshare/internal/notify"
	"github.com/zfogg/vidshare/internal/realtime"
	"github.com/zfogg/vidshare/internal/search"
	"github.com/zfogg/vidshare/internal/storage"
	"github.com/zfogg/vidshare/internal/telemetry"
	"github.com/zfogg/vidshare/internal/validation"
	"go.uber.org/zap"
)

const serviceName = "vidshare-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== vidshare server starting ===",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.Register()
	metrics.Initialize()

	ctx := context.Background()

	// Tracing
	tp, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Tracing.Endpoint,
		Enabled:      cfg.Tracing.Enabled,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Log.Warn("Tracing disabled", zap.Error(err))
	}

	// Database
	db, err := database.Open(cfg.Database.DSN(), database.DefaultOptions())
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	checks := validation.NewServiceValidator(cfg.RequiredServices)

	// Redis is optional: without it the video cache is off and rate limits
	// are per instance.
	var store cache.Store
	if cfg.Redis.Enabled() {
		redisClient, err := cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			logger.Log.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			store = redisClient
			checks.Add("redis", redisClient.Ping)
		}
	}

	// Object storage
	prober := media.NewFFProbe(cfg.FFProbePath)
	checks.Add("ffprobe", prober.Check)

	backend, err := newObjectStore(ctx, cfg, checks)
	if err != nil {
		logger.Log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	uploader := storage.NewBreakerUploader(
		storage.WithDuration(backend, prober),
		cfg.Storage.Driver,
		storage.DefaultBreakerSettings(),
	)

	// Search: Elasticsearch when configured, SQL otherwise.
	var primary search.Index
	if cfg.Search.ElasticsearchURL != "" {
		es, err := search.NewESIndex(cfg.Search.ElasticsearchURL, cfg.Search.Index)
		if err != nil {
			logger.Log.Warn("Elasticsearch unavailable, using SQL search", zap.Error(err))
		} else {
			if err := es.EnsureIndex(ctx); err != nil {
				logger.Log.Warn("Failed to ensure search index", zap.Error(err))
			}
			primary = es
			checks.Add("elasticsearch", es.Ping)
		}
	}
	searchSvc := search.NewService(primary, search.NewSQLIndex(db))

	if err := checks.ValidateServices(ctx); err != nil {
		logger.Log.Fatal("Required service check failed", zap.Error(err))
	}

	// Mail
	var mailer email.Sender
	if cfg.Email.From != "" {
		ses, err := email.NewSESSender(cfg.Email.Region, cfg.Email.From, "vidshare")
		if err != nil {
			logger.Log.Warn("SES unavailable, reset links will only be logged", zap.Error(err))
		} else {
			mailer = ses
		}
	}
	authService := auth.NewService(db, cfg.Auth, mailer, cfg.BaseURL)

	// Realtime notifications
	hub := realtime.NewHub()
	go hub.Run()
	notifier := notify.NewService(db, hub)

	h := handlers.NewHandlers(db, uploader)
	h.SetNotifier(notifier)
	h.SetSearch(searchSvc)
	h.SetCache(store)
	h.SetRealtimeHandler(realtime.NewHandler(hub, originPatterns(cfg.CORSOrigins), notifier.UnreadCount))
	authHandlers := handlers.NewAuthHandlers(db, authService, uploader, cfg.Auth.SecureCookies, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	// Background housekeeping
	worker := maintenance.NewWorker(db, authService, h.Engagement(), uploader, cfg.MaintenanceInterval, cfg.MediaRetention)
	worker.Start()
	defer worker.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing(serviceName)...)
	r.Use(middleware.GinLogger())
	r.Use(middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = !allowsAnyOrigin(cfg.CORSOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After"}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/notifications/ws", "/metrics"})))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	mw := handlers.RouteMiddleware{
		Auth:         middleware.AuthRequired(authService),
		OptionalAuth: middleware.AuthOptional(authService),
		AuthLimit:    middleware.RedisRateLimit(store, middleware.AuthRateLimitConfig()),
		UploadLimit:  middleware.RedisRateLimit(store, middleware.UploadRateLimitConfig()),
		ViewLimit:    middleware.RedisRateLimit(store, middleware.ViewRateLimitConfig()),
	}

	api := r.Group("/api/v1", middleware.RedisRateLimit(store, middleware.DefaultRateLimitConfig()))
	authHandlers.RegisterRoutes(api, mw)
	h.RegisterRoutes(api, mw)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("Realtime hub did not drain", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
		logger.Log.Warn("Failed to flush traces", zap.Error(err))
	}
	logger.Log.Info("Server exited")
}

func newObjectStore(ctx context.Context, cfg *config.Config, checks *validation.ServiceValidator) (storage.Uploader, error) {
	if cfg.Storage.Driver == "minio" {
		u, err := storage.NewMinioUploader(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			UseSSL:    cfg.Storage.MinioUseSSL,
			Bucket:    cfg.Storage.Bucket,
			PublicURL: cfg.Storage.CDNBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return u, nil
	}

	u, err := storage.NewS3Uploader(ctx, cfg.Storage.Region, cfg.Storage.Bucket, cfg.Storage.CDNBaseURL)
	if err != nil {
		return nil, err
	}
	checks.Add("storage", u.CheckBucketAccess)
	return u, nil
}

// originPatterns turns CORS origins into the host patterns the websocket
// upgrader matches against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		out = append(out, strings.TrimSuffix(o, "/"))
	}
	return out
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
