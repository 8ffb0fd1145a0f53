package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinic/dashboard/internal/config"
	"github.com/clinic/dashboard/internal/domain/financial"
	"github.com/clinic/dashboard/internal/domain/identity"
	"github.com/clinic/dashboard/internal/domain/inventory"
	"github.com/clinic/dashboard/internal/domain/notification"
	"github.com/clinic/dashboard/internal/domain/prescription"
	"github.com/clinic/dashboard/internal/domain/scheduling"
	"github.com/clinic/dashboard/internal/platform/auth"
	"github.com/clinic/dashboard/internal/platform/db"
	"github.com/clinic/dashboard/internal/platform/linktoken"
	"github.com/clinic/dashboard/internal/platform/mailer"
	"github.com/clinic/dashboard/internal/platform/metrics"
	"github.com/clinic/dashboard/internal/platform/middleware"
	"github.com/clinic/dashboard/internal/platform/realtime"
	"github.com/clinic/dashboard/internal/platform/reporting"
	"github.com/clinic/dashboard/internal/platform/websocket"
)

const poolStatsInterval = 15 * time.Second

type services struct {
	identity      *identity.Service
	notifications *notification.Service
	dispatcher    *notification.Dispatcher
	financial     *financial.Service
	scheduling    *scheduling.Service
	prescriptions *prescription.Service
	inventory     *inventory.Service
}

// newServices builds every domain service on top of pool. Notifications are
// written through one dispatcher that publishes to publisher.
func newServices(cfg *config.Config, pool *pgxpool.Pool, publisher realtime.Publisher, mail *mailer.Mailer, m *metrics.Metrics, logger zerolog.Logger) *services {
	ident := identity.NewService(identity.NewUserRepo(pool), identity.NewPatientRepo(pool))
	notifRepo := notification.NewRepo(pool)
	dispatcher := notification.NewDispatcher(notifRepo, publisher, cfg.PublishTimeout, m,
		logger.With().Str("component", "notification").Logger())
	fin := financial.NewService(financial.NewRepo(pool))

	return &services{
		identity:      ident,
		notifications: notification.NewService(notifRepo),
		dispatcher:    dispatcher,
		financial:     fin,
		scheduling: scheduling.NewService(scheduling.NewRepo(pool), ident, dispatcher,
			logger.With().Str("component", "scheduling").Logger()),
		prescriptions: prescription.NewService(prescription.NewRepo(pool), ident, dispatcher,
			logger.With().Str("component", "prescription").Logger()),
		inventory: inventory.NewService(inventory.Deps{
			Vendors:       inventory.NewVendorRepo(pool),
			Stock:         inventory.NewStockRepo(pool),
			Orders:        inventory.NewOrderRepo(pool),
			Tx:            db.NewTxManager(pool),
			Expenses:      fin,
			Notifier:      dispatcher,
			Mailer:        mail,
			Links:         linktoken.NewIssuer(cfg.LinkSecret, cfg.LinkTTL),
			Metrics:       m,
			Logger:        logger.With().Str("component", "inventory").Logger(),
			PracticeName:  cfg.PracticeName,
			PublicBaseURL: cfg.PublicBaseURL,
		}),
	}
}

func newRouter(cfg *config.Config, svc *services, pool *pgxpool.Pool, hub *websocket.Hub, m *metrics.Metrics, checks map[string]db.CheckFunc, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(m.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		logger.Warn().Msg("development auth enabled: X-Dev-Subject and X-Dev-Role headers are trusted")
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		}))
	}
	e.Use(auth.ProvisionMiddleware(svc.identity))

	// Health and operations
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/health/ready", db.ReadinessHandler(checks))
	e.GET("/metrics", m.Handler())

	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(e)

	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	limiter := middleware.RateLimit(rl)

	// Vendor links carry a signed token instead of a bearer token.
	invHandler := inventory.NewHandler(svc.inventory)
	invHandler.RegisterPublicRoutes(e.Group("/orders", limiter))

	apiV1 := e.Group("/api/v1", limiter, middleware.RequestTimeout(cfg.RequestTimeout))
	identity.NewHandler(svc.identity).RegisterRoutes(apiV1)
	notification.NewHandler(svc.notifications).RegisterRoutes(apiV1)
	scheduling.NewHandler(svc.scheduling).RegisterRoutes(apiV1)
	prescription.NewHandler(svc.prescriptions).RegisterRoutes(apiV1)
	financial.NewHandler(svc.financial).RegisterRoutes(apiV1)
	invHandler.RegisterRoutes(apiV1)
	reporting.NewHandler(pool).RegisterRoutes(apiV1)

	return e
}

// reportPoolStats copies pool occupancy into the metrics gauges until ctx ends.
func reportPoolStats(ctx context.Context, pool *pgxpool.Pool, m *metrics.Metrics, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		stat := pool.Stat()
		m.SetPoolStats(stat.AcquiredConns(), stat.IdleConns())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	bg, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// Database
	pool, err := db.NewPool(bg, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	m := metrics.New()
	checks := map[string]db.CheckFunc{"database": pool.Ping}

	// Live delivery: the local hub always, Redis when several instances
	// share the load.
	hub := websocket.NewHub(logger)
	hub.OnDrop(func(string) { m.WebSocketDropped() })
	var publisher realtime.Publisher = hub
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		origin := uuid.NewString()
		publisher = realtime.FanOut{hub, realtime.NewRedisPublisher(client, origin)}
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

		relay := realtime.NewRelay(client, origin, hub, logger.With().Str("component", "realtime").Logger())
		go relay.Run(bg)
	}

	// Outbound mail
	var sender mailer.Sender = mailer.LogSender{Logger: logger}
	if cfg.RabbitMQURL != "" {
		amqpSender, err := mailer.NewAMQPSender(cfg.RabbitMQURL, cfg.MailExchange, logger)
		if err != nil {
			return fmt.Errorf("connect mail queue: %w", err)
		}
		defer amqpSender.Close()
		sender = amqpSender
		checks["mail_queue"] = amqpSender.Ping
	} else {
		logger.Warn().Msg("RABBITMQ_URL not set: purchase orders are logged, not sent")
	}
	mail := mailer.New(mailer.NewTemplateEngine(), sender, cfg.MailFrom)

	svc := newServices(cfg, pool, publisher, mail, m, logger)
	e := newRouter(cfg, svc, pool, hub, m, checks, logger)

	go reportPoolStats(bg, pool, m, poolStatsInterval)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopBackground()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
