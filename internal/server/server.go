// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tdh/internal/assistant"
	"tdh/internal/cache"
	"tdh/internal/config"
	"tdh/internal/database"
	"tdh/internal/featureflags"
	"tdh/internal/middleware"
	"tdh/internal/models"
	"tdh/internal/notifications"
	"tdh/internal/repository"
	"tdh/internal/service"
	"tdh/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
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
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	commentRepo    repository.CommentRepository
	centerRepo     repository.CenterRepository
	media          storage.Store
	featureFlags   *featureflags.Manager
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	hubs           []wireableHub
	accounts       *service.AccountService
	posts          *service.PostService
	comments       *service.CommentService
	centers        *service.CenterService
	admin          *service.AdminService
	assistant      *assistant.Service
}

// Option customizes a Server built by NewServerWithDeps.
type Option func(*options)

type options struct {
	generator  assistant.Generator
	media      storage.Store
	bcryptCost int
}

// WithGenerator replaces the configured assistant generator.
func WithGenerator(g assistant.Generator) Option {
	return func(o *options) { o.generator = g }
}

// WithMediaStore replaces the store selected by MEDIA_BACKEND.
func WithMediaStore(st storage.Store) Option {
	return func(o *options) { o.media = st }
}

// WithBcryptCost lowers password hashing cost in tests.
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := o.media
	if store == nil {
		var err error
		store, err = storage.New(context.Background(), cfg)
		if err != nil {
			return nil, fmt.Errorf("media store: %w", err)
		}
	}

	generator := o.generator
	if generator == nil {
		generator = newConfiguredGenerator(cfg)
	}

	rules := assistant.DefaultRules()
	if cfg.AIRulesFile != "" {
		loaded, err := assistant.LoadRules(cfg.AIRulesFile)
		if err != nil {
			return nil, fmt.Errorf("assistant rules: %w", err)
		}
		rules = loaded
	}

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("tdh-api"),
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		centerRepo:     repository.NewCenterRepository(db),
		media:          store,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	// Events are only fanned out when Redis is available.
	var publisher notifications.Publisher
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
		server.hubs = []wireableHub{server.hub}
		publisher = server.notifier
	}

	uploader := &service.MediaUploader{
		Store:    store,
		MaxBytes: int64(cfg.MediaMaxUploadSizeMB) << 20,
	}
	server.accounts = service.NewAccountService(server.userRepo, server.postRepo, uploader, publisher)
	if o.bcryptCost > 0 {
		server.accounts.WithBcryptCost(o.bcryptCost)
	}
	server.posts = service.NewPostService(server.postRepo, uploader, publisher)
	server.comments = service.NewCommentService(server.commentRepo, publisher)
	server.centers = service.NewCenterService(server.centerRepo)
	server.admin = service.NewAdminService(server.userRepo, server.postRepo, server.centerRepo)
	server.assistant = assistant.NewService(generator, rules, assistant.Options{
		Timeout:       cfg.AITimeout(),
		MaxConcurrent: int64(cfg.AIMaxConcurrent),
	})

	return server, nil
}

// newConfiguredGenerator returns nil when no API key is set; the assistant
// then answers generated questions with its apology.
func newConfiguredGenerator(cfg *config.Config) assistant.Generator {
	gen, err := assistant.NewLLMGenerator(assistant.LLMConfig{
		BaseURL:     cfg.AIBaseURL,
		APIKey:      cfg.AIAPIKey,
		Model:       cfg.AIModel,
		Temperature: cfg.AITemperature,
	})
	if err != nil {
		middleware.Logger.Warn("assistant generator disabled", slog.String("error", err.Error()))
		return nil
	}
	return gen
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	app.Use(middleware.TracingMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health", s.HealthCheck)
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/monitor", s.AuthRequired(), s.AdminRequired(), monitor.New(monitor.Config{
		Title: "TDH Backend Metrics Dashboard",
	}))

	if s.media != nil && s.media.Backend() == "local" && s.config.MediaDir != "" {
		app.Static(strings.TrimSuffix(storage.LocalPrefix, "/"), s.config.MediaDir, fiber.Static{
			Browse: false,
			MaxAge: 3600,
		})
	}

	// Session boundary
	app.Post("/register", s.RejectIfSignedIn(), middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "register"), s.Register)
	app.Post("/login", s.RejectIfSignedIn(), middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	app.Post("/logout", s.AuthRequired(), s.Logout)

	protected := app.Group("", s.AuthRequired())

	// Feed and posts
	protected.Get("/feed", s.GetFeed)
	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(
		s.redis, 5, time.Minute, "create_post"), s.CreatePost)
	posts.Post("/:id/like", s.ToggleLike)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Post("/:id/delete", s.DeletePost)

	// Profile routes; /profile/delete must precede /profile/:userId
	profile := protected.Group("/profile")
	profile.Get("/", s.GetMyProfile)
	profile.Post("/", s.UpdateMyProfile)
	profile.Post("/delete", s.DeleteMyAccount)
	profile.Get("/:userId", s.GetAccountProfile)

	protected.Get("/centers", s.GetCenters)

	protected.Post("/api/ask", middleware.RateLimit(
		s.redis, 20, time.Minute, "assistant"), s.Ask)

	// Websocket feed events
	protected.Get("/ws", s.WebSocketFeedHandler())

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/", s.GetDashboard)
	admin.Post("/accounts/:id/approve", s.ApproveAccount)
	admin.Post("/accounts/:id/reject", s.RejectAccount)
	admin.Post("/centers", s.CreateCenter)
	admin.Post("/centers/:id/delete", s.DeleteCenter)
	admin.Post("/announcements", s.CreateAnnouncement)
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
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
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis backs sessions revocation and rate limits
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"media":    s.media.Backend(),
		},
		"time": time.Now(),
	})
}

// NewApp builds the Fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "TDH API",
		BodyLimit: (s.config.MediaMaxUploadSizeMB + 1) << 20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error",
				slog.String("path", c.Path()),
				slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	// Wire all hubs to Redis subscriber if available
	if s.notifier != nil {
		for _, h := range s.hubs {
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
					middleware.Logger.Error("failed to start hub wiring",
						slog.String("hub", h.Name()),
						slog.String("error", err.Error()))
				}
			}()
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all wiring goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Close WebSocket connections gracefully
	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub",
				slog.String("hub", h.Name()),
				slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
