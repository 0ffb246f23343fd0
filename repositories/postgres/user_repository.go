package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/cryptohelms/backend/models"
	"github.com/cryptohelms/backend/repositories"
)

const (
	uniqueViolation = pq.ErrorCode("23505")

	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"

	userColumns = `id, username, email, email_verified, password, salt, is_active, is_superuser, created_at, updated_at`
)

// UserRepository implements repositories.UserRepository
type UserRepository struct {
	db     *DB
	tx     *Transaction
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// WithTx returns a repository bound to tx
func (r *UserRepository) WithTx(tx repositories.Transaction) repositories.UserRepository {
	pgTx, ok := tx.(*Transaction)
	if !ok {
		return r
	}
	return &UserRepository{db: r.db, tx: pgTx, logger: r.logger}
}

func (r *UserRepository) executor(ctx context.Context) Executor {
	if r.tx != nil {
		return r.tx.tx
	}
	return GetExecutor(ctx, r.db)
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.executor(ctx).ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.EmailVerified,
		user.Password,
		user.Salt,
		user.IsActive,
		user.IsSuperuser,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if dupErr := duplicateError(err); dupErr != nil {
			return dupErr
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()), zap.String("username", user.Username))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email", email)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username", username)
}

// getOne selects a single user by a fixed column name; column is never user input
func (r *UserRepository) getOne(ctx context.Context, column string, value interface{}) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	user := &models.User{}
	err := r.executor(ctx).QueryRowContext(ctx, query, value).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.EmailVerified,
		&user.Password,
		&user.Salt,
		&user.IsActive,
		&user.IsSuperuser,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	return user, nil
}

// duplicateError maps a unique violation onto the matching sentinel
func duplicateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}

	switch {
	case pqErr.Constraint == emailConstraint, strings.Contains(pqErr.Detail, "(email)"):
		return repositories.ErrDuplicateEmail
	case pqErr.Constraint == usernameConstraint, strings.Contains(pqErr.Detail, "(username)"):
		return repositories.ErrDuplicateUsername
	default:
		return fmt.Errorf("unique violation on %s: %w", pqErr.Constraint, err)
	}
}
