package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cryptohelms/backend/auth"
	"github.com/cryptohelms/backend/config"
	"github.com/cryptohelms/backend/credentials"
	"github.com/cryptohelms/backend/handlers"
	"github.com/cryptohelms/backend/internal/observability"
	"github.com/cryptohelms/backend/middleware"
	"github.com/cryptohelms/backend/repositories"
	"github.com/cryptohelms/backend/repositories/postgres"
	"github.com/cryptohelms/backend/services"
	"github.com/cryptohelms/backend/token"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	TxManager repositories.TransactionManager

	// Auth
	Passwords      *credentials.Manager
	Tokens         *token.Service
	UserService    *services.UserService
	AuthMiddleware *middleware.AuthMiddleware

	authHandler   *auth.Handler
	healthHandler *handlers.HealthHandler
}

// AuthHandler returns the auth handler for route wiring
func (d *Dependencies) AuthHandler() *auth.Handler {
	return d.authHandler
}

// HealthHandler returns the health handler for route wiring
func (d *Dependencies) HealthHandler() *handlers.HealthHandler {
	return d.healthHandler
}

// NewDependencies connects to the database and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesFromFactory(cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesFromFactory wires everything on top of an existing repository factory
func NewDependenciesFromFactory(cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	deps.initRepositories()
	deps.initMetrics(cfg)

	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps.initHandlers(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initMetrics(cfg *config.Config) {
	if !cfg.Observability.MetricsEnabled {
		d.Logger.Info("metrics disabled")
		return
	}
	d.Metrics = observability.NewMetrics()
}

// initAuth builds the password manager, token service, user service and auth middleware
func (d *Dependencies) initAuth(cfg *config.Config) error {
	passwords, err := credentials.NewManager(credentials.Params{
		Time:      cfg.Auth.HashTime,
		MemoryKiB: cfg.Auth.HashMemoryKiB,
		Threads:   cfg.Auth.HashThreads,
	})
	if err != nil {
		return err
	}

	tokens, err := token.NewService(token.Config{
		SecretKey: []byte(cfg.Auth.SecretKey),
		Audience:  cfg.Auth.Audience,
		Issuer:    cfg.Auth.Issuer,
		Lifetime:  cfg.Auth.AccessTokenLifetime,
		Leeway:    cfg.Auth.Leeway,
	})
	if err != nil {
		return err
	}

	var authMetrics services.AuthMetrics
	if d.Metrics != nil {
		authMetrics = d.Metrics
	}

	d.Passwords = passwords
	d.Tokens = tokens
	d.UserService, err = services.NewUserService(
		d.Users,
		d.TxManager,
		passwords,
		tokens,
		cfg.Auth.MaxConcurrentHashes,
		authMetrics,
		d.Logger,
	)
	if err != nil {
		return err
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(tokens, cfg.Auth.TokenPrefix, d.Logger)
	d.authHandler = auth.NewHandler(d.UserService, d.Logger)

	d.Logger.Info("auth initialized",
		zap.String("audience", cfg.Auth.Audience),
		zap.Duration("token_lifetime", tokens.Lifetime()),
		zap.Int("max_concurrent_hashes", cfg.Auth.MaxConcurrentHashes))
	return nil
}

func (d *Dependencies) initHandlers(cfg *config.Config) {
	var db handlers.HealthChecker
	if d.DB != nil {
		db = d.DB
	}
	d.healthHandler = handlers.NewHealthHandler(db, handlers.StatusResponse{
		Name:        cfg.ProjectName,
		Version:     cfg.Version,
		Environment: cfg.Environment,
	}, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
