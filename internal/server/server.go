// Package server exposes the HTTP gateway: transport updates in, health,
// statistics and admin operations.
package server

import (
	"context"
	"log/slog"
	"time"

	"psymatch/internal/bootstrap"
	"psymatch/internal/bot"
	"psymatch/internal/config"
	"psymatch/internal/conversation"
	"psymatch/internal/database"
	"psymatch/internal/middleware"
	"psymatch/internal/models"
	"psymatch/internal/notifications"
	"psymatch/internal/repository"
	"psymatch/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	profiles       repository.ProfileRepository
	matches        *service.MatchService
	deck           *service.Deck
	engine         *conversation.Engine
	messenger      *notifications.Messenger
	dispatcher     *bot.Dispatcher
}

// NewServer connects to the database and Redis and builds the server.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SeedFixtures: cfg.SeedFixtures})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil Redis client falls back to in-process sessions and logged notifications.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	profiles := repository.NewProfileRepository(db)
	likes := repository.NewLikeRepository(db)
	viewed := repository.NewViewedRepository(db)

	var (
		sessions conversation.SessionStore
		gateway  notifications.Gateway
	)
	if redisClient != nil {
		sessions = conversation.NewRedisSessionStore(redisClient, cfg.SessionTTL)
		gateway = notifications.NewRedisGateway(notifications.NewNotifier(redisClient))
	} else {
		sessions = conversation.NewMemorySessionStore(cfg.SessionTTL)
		gateway = notifications.NewLogGateway(middleware.Logger)
	}

	messenger := notifications.NewMessenger(gateway, notifications.MessengerConfig{
		ConsecutiveFailures: cfg.NotifyBreakerFailures,
	}, middleware.Logger)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("psymatch"),
		profiles:       profiles,
		messenger:      messenger,
		deck:           service.NewDeck(profiles, likes, viewed),
		matches:        service.NewMatchService(profiles, likes, messenger),
		engine:         conversation.NewEngine(profiles, sessions, messenger),
	}
	s.dispatcher = bot.NewDispatcher(profiles, s.engine, s.deck, s.matches, messenger)
	return s
}

// Dispatcher exposes the update dispatcher for in-process transports.
func (s *Server) Dispatcher() *bot.Dispatcher {
	return s.dispatcher
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(middleware.StructuredLogger())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Post("/updates", middleware.GatewayAuth(s.config.GatewaySecret), s.HandleUpdate)
	api.Get("/stats", s.GetGlobalStats)

	admin := api.Group("/admin",
		middleware.RateLimit(s.redis, s.config.AdminRateLimit, time.Minute, "admin"),
		middleware.AdminKeyRequired(s.config.AdminKeyHash),
	)
	admin.Get("/users/:id", s.GetUser)
	admin.Delete("/users/:id", s.PurgeUser)
	admin.Delete("/users/:id/views", s.ResetViews)
}

// NewApp builds a Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "psymatch",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	app := s.NewApp()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional: without
// it the service runs on in-process sessions.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database":      dbStatus,
			"redis":         redisStatus,
			"notifications": s.messenger.BreakerState().String(),
		},
		"time": time.Now(),
	})
}
