// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "strayland/docs" // swagger docs
	"strayland/internal/auth"
	"strayland/internal/bootstrap"
	"strayland/internal/cache"
	"strayland/internal/config"
	"strayland/internal/middleware"
	"strayland/internal/models"
	"strayland/internal/notifications"
	"strayland/internal/repository"
	"strayland/internal/service"
	"strayland/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	promOnce sync.Once
	promHTTP *fiberprometheus.FiberPrometheus
)

// httpMetrics registers the HTTP collectors once per process.
func httpMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promHTTP = fiberprometheus.New("strayland-api")
	})
	return promHTTP
}

// Deps are the already-connected dependencies of a Server.
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Objects   storage.ObjectStore
	Completer service.Completer
	Assistant service.AssistantProfile
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	runtime        *bootstrap.Runtime
	resolver       *auth.Resolver
	validate       *validator.Validate
	objects        storage.ObjectStore
	notifier       *notifications.Notifier
	hub            *notifications.Hub

	likeService      *service.LikeService
	postService      *service.PostService
	commentService   *service.CommentService
	placeService     *service.PlaceService
	imageService     *service.ImageService
	assistantService *service.AssistantService
}

// NewServer connects every dependency described by cfg and builds a Server.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s, err := NewServerWithDeps(cfg, Deps{
		DB:        rt.DB,
		Redis:     rt.Redis,
		Objects:   rt.Objects,
		Completer: rt.LLM,
		Assistant: rt.Assistant,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	s.runtime = rt
	return s, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("server requires a database")
	}
	resolver, err := auth.NewResolver(cfg)
	if err != nil {
		return nil, err
	}

	store := cache.New(deps.Redis)
	postRepo := repository.NewPostRepository(deps.DB, store)
	commentRepo := repository.NewCommentRepository(deps.DB, store)
	likeRepo := repository.NewLikeRepository(deps.DB, store)

	hub := notifications.NewHub(0)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		promMiddleware: httpMetrics(),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
		resolver:       resolver,
		validate:       newValidator(),
		objects:        deps.Objects,
		hub:            hub,
		notifier:       notifications.NewNotifier(deps.Redis, hub),
	}

	if deps.Objects != nil {
		s.imageService = service.NewImageService(deps.Objects, cfg.MaxUploadBytes)
	}
	s.likeService = service.NewLikeService(likeRepo)
	s.postService = service.NewPostService(postRepo, likeRepo, s.imageService)
	s.commentService = service.NewCommentService(commentRepo, postRepo)
	s.placeService = service.NewPlaceService(postRepo)
	s.assistantService = service.NewAssistantService(deps.Completer, deps.Assistant)

	return s, nil
}

// App builds the Fiber app with middleware and routes on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	bodyLimit := int(s.config.MaxUploadBytes) + 1<<20
	app := fiber.New(fiber.Config{
		AppName:   "Strayland API",
		BodyLimit: bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				if fe.Code == fiber.StatusRequestEntityTooLarge {
					return models.RespondWithError(c, fe.Code, models.NewPayloadTooLargeError(s.config.MaxUploadBytes))
				}
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// Security headers; uploaded images are embedded cross-origin.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses carry its headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Client-Id, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	optionalVoter := middleware.OptionalVoter(s.resolver)
	voterRequired := middleware.VoterRequired(s.resolver)
	window := time.Duration(s.config.RateLimitWindowSeconds) * time.Second

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if local, ok := s.objects.(*storage.LocalStore); ok && s.config.LocalStorageURL != "" {
		app.Static(s.config.LocalStorageURL, local.Dir(), fiber.Static{MaxAge: 3600})
	}

	api := app.Group("/api")
	api.Get("/__ping", s.Ping)
	api.Get("/swagger/*", swagger.HandlerDefault)

	posts := api.Group("/posts")
	posts.Get("/", optionalVoter, s.GetPosts)
	posts.Post("/", voterRequired, s.CreatePost)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts.Post("/:id/like", voterRequired,
		middleware.RateLimit(s.redis, s.config.RateLimitLikes, window, "like"), s.ToggleLike)
	posts.Get("/:id/comments", s.GetComments)
	posts.Get("/:id", optionalVoter, s.GetPost)
	posts.Delete("/:id", voterRequired, s.DeletePost)

	comments := api.Group("/comments")
	comments.Post("/", optionalVoter, s.CreateComment)
	comments.Delete("/:id", voterRequired, s.DeleteComment)

	api.Get("/places", s.GetPlaces)

	chat := api.Group("/chat")
	chat.Get("/suggestions", s.GetChatSuggestions)
	chat.Post("/", optionalVoter,
		middleware.RateLimit(s.redis, s.config.RateLimitChat, window, "chat"), s.Chat)

	api.Get("/ws", optionalVoter, s.WebSocketUpgrade, s.WebSocketFeedHandler())
}

// Ping handles GET /api/__ping
func (s *Server) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it the feed runs uncached and single-instance.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"websocket_clients": s.hub.Count(),
		"time":              time.Now(),
	})
}

// Start starts the feed subscriber and listens on the configured port.
func (s *Server) Start() error {
	app := s.App()

	if err := s.notifier.StartSubscriber(s.shutdownCtx); err != nil {
		middleware.Logger.Warn("feed subscriber not started, events stay local",
			slog.String("error", err.Error()))
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down feed hub", slog.String("error", err.Error()))
	}

	s.runtime.Close()

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
