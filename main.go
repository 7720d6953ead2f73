package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"testdesk/internal/config"
	"testdesk/internal/container"
	"testdesk/internal/domain"
	"testdesk/internal/handler"
	"testdesk/internal/middleware"
	"testdesk/internal/service"
	"testdesk/pkg/database"
	"testdesk/pkg/logger"
	"testdesk/pkg/redis"
)

// Resources holds all resources that need cleanup
type Resources struct {
	db          *database.PostgresDB
	redisClient *redis.Client
	sweeper     service.Sweeper
	server      *http.Server
	log         *logger.Logger
	mu          sync.Mutex
	closed      bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error

	r.log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first to stop accepting new requests
	if r.server != nil {
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	// Stop the background sweeps
	if r.sweeper != nil {
		if err := r.sweeper.Stop(ctx); err != nil {
			r.log.WithError(err).Error("Failed to stop sweeper")
			errs = append(errs, fmt.Errorf("sweeper shutdown: %w", err))
		}
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			r.log.WithError(err).Error("Failed to close Redis connection")
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	if r.db != nil {
		r.db.Close()
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errs), errs)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
	}).Info("Starting testdesk server")

	ctx := context.Background()
	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	if err := c.Sweeper.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start sweeper")
	}

	router := setupRouter(c)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	resources := &Resources{
		db:          c.DB,
		redisClient: c.RedisClient,
		sweeper:     c.Sweeper,
		server:      server,
		log:         log,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// setupRouter configures and returns the HTTP router
func setupRouter(c *container.Container) *chi.Mux {
	cfg := c.GetConfig()
	log := c.GetLogger()

	r := chi.NewRouter()

	corsConfig := &middleware.CORSConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", handler.FingerprintHeader},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           86400,
	}

	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID(log))
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Compress(5))
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	healthHandler := handler.NewHealthHandler(c)
	authHandler := handler.NewAuthHandler(c.AuthService)
	pollHandler := handler.NewPollHandler(c.PollService)
	participationHandler := handler.NewParticipationHandler(c.ParticipationService)
	userHandler := handler.NewUserHandler(c.UserService)
	companyHandler := handler.NewCompanyHandler(c.CompanyService)

	r.Get("/health", healthHandler.Check)

	r.Route("/api", func(r chi.Router) {
		// Anonymous participation endpoints
		r.Route("/polls/{pollUUID}", func(r chi.Router) {
			r.Post("/start", participationHandler.StartSession)
			r.Get("/", participationHandler.GetPoll)
			r.Post("/responses", participationHandler.SubmitResponses)
		})

		// Authentication
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(c.AuthService, log))
				r.Get("/me", authHandler.Me)
			})
		})

		// Invitation-based registration (the token is the credential)
		r.Post("/users/register", userHandler.Register)

		// Poll ownership
		r.Route("/user_polls", func(r chi.Router) {
			r.Use(middleware.Auth(c.AuthService, log))

			r.Post("/", pollHandler.Create)
			r.Get("/", pollHandler.List)
			r.Route("/{pollID}", func(r chi.Router) {
				r.Get("/", pollHandler.Get)
				r.Put("/", pollHandler.Update)
				r.Delete("/", pollHandler.Delete)
				r.Post("/clone", pollHandler.Clone)
				r.Patch("/status", pollHandler.ChangeStatus)
				r.Get("/responses", pollHandler.Responses)
				r.Get("/report", pollHandler.Report)
			})
		})

		// User administration
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(c.AuthService, log))
			r.Use(middleware.RequireRole(domain.RoleAdmin, log))
			r.Get("/users", userHandler.List)
		})

		// Tenant administration
		r.Route("/companies", func(r chi.Router) {
			r.Use(middleware.Auth(c.AuthService, log))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleSuperadmin, log))
				r.Post("/", companyHandler.Create)
				r.Get("/", companyHandler.List)
				r.Delete("/{companyID}", companyHandler.Delete)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleAdmin, log))
				r.Get("/{companyID}", companyHandler.Get)
				r.Put("/{companyID}", companyHandler.Update)
				r.Post("/{companyID}/invitations", companyHandler.Invite)
				r.Get("/{companyID}/invitations", companyHandler.Invitations)
				r.Delete("/{companyID}/invitations/{invitationID}", companyHandler.Revoke)
			})
		})
	})

	return r
}
