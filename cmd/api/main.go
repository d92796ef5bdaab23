package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"github.com/andika-pr/backend-otoparts/internal/auth"
	"github.com/andika-pr/backend-otoparts/internal/catalog"
	"github.com/andika-pr/backend-otoparts/internal/config"
	"github.com/andika-pr/backend-otoparts/internal/db"
	"github.com/andika-pr/backend-otoparts/internal/health"
	"github.com/andika-pr/backend-otoparts/internal/obs"
	"github.com/andika-pr/backend-otoparts/internal/order"
	"github.com/andika-pr/backend-otoparts/internal/ratelimit"
	"github.com/andika-pr/backend-otoparts/internal/security"
	"github.com/andika-pr/backend-otoparts/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "otoparts")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, "otoparts-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	store := db.NewStore(pool)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("ping redis")
		}
	} else {
		logger.Warn().Msg("REDIS_URL not set; caching and rate limiting disabled")
	}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Queries: store,
		Files:   &catalog.LocalFileStore{Dir: cfg.UploadDir},
		Cache:   catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	authService, err := auth.NewService(auth.Config{
		Queries:         store,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
		ClockSkew:       cfg.ClockSkew,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler, err := auth.NewHandler(auth.HandlerConfig{Service: authService})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth handler")
	}
	authMiddleware := auth.Middleware{Service: authService}

	userService, err := user.NewService(user.ServiceConfig{Queries: store})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise user service")
	}
	userHandler, err := user.NewHandler(user.HandlerConfig{Service: userService})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise user handler")
	}

	orderService, err := order.NewService(order.ServiceConfig{Queries: store})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise order service")
	}
	orderHandler, err := order.NewHandler(order.HandlerConfig{Service: orderService})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise order handler")
	}

	authLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:auth:"},
		Config: ratelimit.Config{
			Key:    ratelimit.ClientIP,
			Window: cfg.AuthRateWindow,
			Max:    cfg.AuthRateLimit,
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("rate limiter unavailable")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    500 * time.Millisecond,
		RedisTimeout: 300 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	// Stored item images are served straight from the upload directory.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(cfg.UploadDir))))

	r.Group(func(v chi.Router) {
		v.Use(authMiddleware.Authenticate)

		v.Get("/items", catalogHandler.Find)
		v.Get("/items/discounts", catalogHandler.FindDiscounted)
		v.Post("/items", catalogHandler.Create)
		v.Patch("/items/{id}", catalogHandler.Update)
		v.Delete("/items/{id}", catalogHandler.Destroy)
		v.Post("/items/{id}/images", catalogHandler.UploadImages)

		bodyLimit := security.BodyLimit{Max: 1 << 20}.Middleware
		v.With(bodyLimit).Post("/register", authHandler.Register)
		v.With(bodyLimit, authLimit.Middleware).Post("/login", authHandler.Login)
		v.With(bodyLimit, authLimit.Middleware).Post("/refresh-token", authHandler.Refresh)

		v.Get("/users", userHandler.List)
		v.Patch("/users/{id}/percentage", userHandler.SetPercentage)
		v.Delete("/users/{id}", userHandler.Delete)
		v.Post("/users/{id}/restore", userHandler.Restore)
		v.Delete("/users/{id}/refresh-token", authHandler.RevokeToken)

		v.Group(func(protected chi.Router) {
			protected.Use(authMiddleware.RequireAuth)
			protected.Get("/verify-user", authHandler.Verify)
			protected.Post("/logout", authHandler.Logout)

			protected.Get("/addresses", userHandler.ListAddresses)
			protected.Post("/addresses", userHandler.CreateAddress)
			protected.Patch("/addresses/{id}", userHandler.UpdateAddress)
			protected.Delete("/addresses/{id}", userHandler.DeleteAddress)

			protected.Get("/orders", orderHandler.List)
			protected.Get("/orders/{id}", orderHandler.Get)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		health.SetReady(false)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
