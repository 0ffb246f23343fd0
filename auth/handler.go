package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/cryptohelms/backend/handlers"
	"github.com/cryptohelms/backend/internal/observability"
	"github.com/cryptohelms/backend/middleware"
	"github.com/cryptohelms/backend/models"
	"github.com/cryptohelms/backend/services"
	"github.com/cryptohelms/backend/token"
	"github.com/cryptohelms/backend/utils"
)

// maxBodyBytes caps registration and login payloads
const maxBodyBytes = 1 << 20

// UserService is the part of services.UserService the handler needs
type UserService interface {
	Register(ctx context.Context, input *models.UserCreate) (*models.UserPublic, error)
	Authenticate(ctx context.Context, email, password string) (*models.AccessToken, error)
	CurrentUser(ctx context.Context, identity *token.Identity) (*models.UserPublic, error)
}

// Handler serves registration, password login and the current user
type Handler struct {
	users  UserService
	logger *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(users UserService, logger *zap.Logger) *Handler {
	return &Handler{
		users:  users,
		logger: logger,
	}
}

// HandleRegister handles POST /api/users/ with body {"new_user": {...}}
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context(), h.logger)

	var req models.NewUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handlers.HandleValidationError(w, err, logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		handlers.HandleValidationError(w, err, logger)
		return
	}

	user, err := h.users.Register(r.Context(), req.NewUser)
	if err != nil {
		handlers.HandleServiceError(w, err, logger)
		return
	}

	if err := utils.WriteCreated(w, user); err != nil {
		logger.Error("failed to write register response", zap.Error(err))
	}
}

// HandleLogin handles POST /api/users/login/token/. It takes an OAuth2
// password form where "username" carries the email address.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context(), h.logger)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")

	accessToken, err := h.users.Authenticate(r.Context(), email, password)
	if err != nil {
		handlers.HandleServiceError(w, err, logger)
		return
	}

	if err := utils.WriteOK(w, accessToken); err != nil {
		logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleCurrentUser handles GET /api/users/me/. It must sit behind RequireAuth.
func (h *Handler) HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context(), h.logger)

	user, err := h.users.CurrentUser(r.Context(), middleware.GetIdentityFromContext(r.Context()))
	if err != nil {
		handlers.HandleServiceError(w, err, logger)
		return
	}

	if err := utils.WriteOK(w, user); err != nil {
		logger.Error("failed to write current user response", zap.Error(err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		default:
			return fmt.Errorf("invalid JSON body: %w", err)
		}
	}
	return nil
}

var _ UserService = (*services.UserService)(nil)
