package container

import (
	"context"
	"fmt"

	"testdesk/internal/config"
	"testdesk/internal/repository"
	"testdesk/internal/service"
	"testdesk/internal/service/auth"
	"testdesk/pkg/database"
	"testdesk/pkg/logger"
	"testdesk/pkg/mailer"
	"testdesk/pkg/redis"
	"testdesk/pkg/token"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          *database.PostgresDB
	RedisClient *redis.Client

	PollService          *service.PollService
	ParticipationService *service.ParticipationService
	AuthService          service.AuthService
	UserService          *service.UserService
	CompanyService       *service.CompanyService
	Sweeper              *service.SweeperService
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY must be set")
	}

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	codec := token.NewCodec(cfg.SecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailsFrom,
		FromName: cfg.EmailsName,
	}, log.Logger)

	pollRepo := repository.NewPollRepository(db)
	responseRepo := repository.NewResponseRepository(db)
	userRepo := repository.NewUserRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	sessionStore := repository.NewSessionRepository(redisClient)

	return &Container{
		Config:      cfg,
		Logger:      log,
		DB:          db,
		RedisClient: redisClient,

		PollService: service.NewPollService(pollRepo, responseRepo, sessionStore, cfg.PublicBaseURL, log),
		ParticipationService: service.NewParticipationService(
			pollRepo, responseRepo, sessionStore, codec, cfg.SingleActiveSession, log),
		AuthService:    auth.NewService(userRepo, codec, log),
		UserService:    service.NewUserService(userRepo, invitationRepo, mail, log),
		CompanyService: service.NewCompanyService(companyRepo, invitationRepo, userRepo, mail, cfg.InvitationTTL, cfg.PublicBaseURL, log),
		Sweeper: service.NewSweeperService(
			pollRepo, sessionStore, invitationRepo, cfg.SessionSweepInterval, cfg.InvitationSweepInterval, log),
	}, nil
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetDatabase returns the database pool
func (c *Container) GetDatabase() *database.PostgresDB {
	return c.DB
}

// GetRedis returns the Redis client
func (c *Container) GetRedis() *redis.Client {
	return c.RedisClient
}
