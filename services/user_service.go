package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/cryptohelms/backend/credentials"
	"github.com/cryptohelms/backend/models"
	"github.com/cryptohelms/backend/repositories"
	"github.com/cryptohelms/backend/token"
	"github.com/cryptohelms/backend/utils"
)

// PasswordHasher salts, hashes and verifies passwords
type PasswordHasher interface {
	CreateCredentials(plaintext string) (credentials.Credentials, error)
	VerifyPassword(password, salt, hash string) bool
}

// TokenIssuer mints access tokens
type TokenIssuer interface {
	Issue(identity *token.Identity) (string, error)
}

// AuthMetrics records authentication outcomes
type AuthMetrics interface {
	ObserveHash(op string, d time.Duration)
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveHash(string, time.Duration) {}
func (noopMetrics) RecordRegistration(string)         {}
func (noopMetrics) RecordLogin(string)                {}

// dummyPassword is verified when the email is unknown so both failure paths cost one hash
const dummyPassword = "cryptohelms-dummy-password"

// UserService implements registration, login and current user lookup
type UserService struct {
	users     repositories.UserRepository
	txMgr     repositories.TransactionManager
	hasher    PasswordHasher
	tokens    TokenIssuer
	hashSlots *semaphore.Weighted
	metrics   AuthMetrics
	logger    *zap.Logger

	dummy credentials.Credentials
}

// NewUserService creates a user service. At most maxConcurrentHashes
// password hashes run at once; metrics may be nil. It derives the credentials
// checked for unknown emails up front and fails if that derivation does.
func NewUserService(
	users repositories.UserRepository,
	txMgr repositories.TransactionManager,
	hasher PasswordHasher,
	tokens TokenIssuer,
	maxConcurrentHashes int,
	metrics AuthMetrics,
	logger *zap.Logger,
) (*UserService, error) {
	if maxConcurrentHashes < 1 {
		maxConcurrentHashes = 1
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	dummy, err := hasher.CreateCredentials(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to derive dummy credentials: %w", err)
	}

	return &UserService{
		users:     users,
		txMgr:     txMgr,
		hasher:    hasher,
		tokens:    tokens,
		hashSlots: semaphore.NewWeighted(int64(maxConcurrentHashes)),
		metrics:   metrics,
		logger:    logger,
		dummy:     dummy,
	}, nil
}

// Register creates a user and returns it with a freshly minted access token
func (s *UserService) Register(ctx context.Context, input *models.UserCreate) (*models.UserPublic, error) {
	if input == nil {
		return nil, ErrInvalidInput
	}
	if err := utils.ValidateStruct(input); err != nil {
		s.metrics.RecordRegistration("invalid")
		return nil, ErrInvalidInput.Wrap(err).WithDetail("fields", utils.GetValidationFields(err))
	}

	if err := s.ensureAvailable(ctx, input.Email, input.Username); err != nil {
		return nil, err
	}

	var creds credentials.Credentials
	err := s.withHashSlot(ctx, "create", func() error {
		var err error
		creds, err = s.hasher.CreateCredentials(input.Password)
		return err
	})
	if err != nil {
		if IsUnavailableError(err) {
			return nil, err
		}
		return nil, ErrInternal.Wrap(err)
	}

	user := models.NewUser(input.Username, input.Email, creds.PasswordHash, creds.Salt)
	err = WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		return s.users.WithTx(tx).Create(ctx, user)
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicateEmail):
			s.metrics.RecordRegistration("duplicate_email")
			return nil, ErrDuplicateEmail
		case errors.Is(err, repositories.ErrDuplicateUsername):
			s.metrics.RecordRegistration("duplicate_username")
			return nil, ErrDuplicateUsername
		}
		s.logger.Error("failed to store user", zap.Error(err))
		return nil, ErrInternal.Wrap(err)
	}

	signed, err := s.tokens.Issue(user.Identity())
	if err != nil {
		s.logger.Error("failed to issue token for new user", zap.Error(err))
		return nil, ErrInternal.Wrap(err)
	}

	s.metrics.RecordRegistration("success")
	s.logger.Info("user registered", zap.String("username", user.Username))

	pub := user.Public()
	pub.AccessToken = models.NewAccessToken(signed)
	return pub, nil
}

// ensureAvailable rejects a taken email first, then a taken username
func (s *UserService) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.metrics.RecordRegistration("duplicate_email")
		return ErrDuplicateEmail
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return ErrInternal.Wrap(err)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		s.metrics.RecordRegistration("duplicate_username")
		return ErrDuplicateUsername
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return ErrInternal.Wrap(err)
	}
	return nil
}

// Authenticate checks an email and password pair and returns an access token.
// Unknown emails, wrong passwords and inactive accounts all yield ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.AccessToken, error) {
	if email == "" || password == "" {
		s.metrics.RecordLogin("invalid")
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInternal.Wrap(err)
	}

	var salt, hash string
	if user != nil {
		salt, hash = user.Salt, user.Password
	} else {
		salt, hash = s.dummy.Salt, s.dummy.PasswordHash
	}

	var ok bool
	if err := s.withHashSlot(ctx, "verify", func() error {
		ok = s.hasher.VerifyPassword(password, salt, hash)
		return nil
	}); err != nil {
		return nil, err
	}

	switch {
	case user == nil:
		s.rejectLogin("unknown_email")
		return nil, ErrInvalidCredentials
	case !ok:
		s.rejectLogin("wrong_password")
		return nil, ErrInvalidCredentials
	case !user.IsActive:
		s.rejectLogin("inactive")
		return nil, ErrInvalidCredentials
	}

	signed, err := s.tokens.Issue(user.Identity())
	if err != nil {
		s.logger.Error("failed to issue token", zap.Error(err))
		return nil, ErrInternal.Wrap(err)
	}

	s.metrics.RecordLogin("success")
	return models.NewAccessToken(signed), nil
}

func (s *UserService) rejectLogin(reason string) {
	s.metrics.RecordLogin(reason)
	s.logger.Info("login rejected", zap.String("reason", reason))
}

// CurrentUser resolves a verified token identity to an active user
func (s *UserService) CurrentUser(ctx context.Context, identity *token.Identity) (*models.UserPublic, error) {
	if identity == nil || identity.Username == "" {
		return nil, ErrUnauthorized
	}

	user, err := s.users.GetByUsername(ctx, identity.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.Info("token for unknown user", zap.String("username", identity.Username))
			return nil, ErrUnauthorized
		}
		return nil, ErrInternal.Wrap(err)
	}

	if !user.IsActive || user.Email != identity.Subject {
		s.logger.Info("token for inactive or changed user", zap.String("username", identity.Username))
		return nil, ErrUnauthorized
	}

	return user.Public(), nil
}

// withHashSlot runs fn once a hashing slot is free, or gives up with ErrBusy
// when ctx ends first.
func (s *UserService) withHashSlot(ctx context.Context, op string, fn func() error) error {
	if err := s.hashSlots.Acquire(ctx, 1); err != nil {
		s.logger.Warn("no password hashing slot available", zap.String("op", op), zap.Error(err))
		return ErrBusy.Wrap(err)
	}
	defer s.hashSlots.Release(1)

	start := time.Now()
	err := fn()
	s.metrics.ObserveHash(op, time.Since(start))
	return err
}
