package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cryptohelms/backend/token"
	"github.com/cryptohelms/backend/utils"
)

// CredentialsError is the single detail returned for every rejected token
const CredentialsError = "Could not validate token credentials."

// TokenValidator verifies a signed access token
type TokenValidator interface {
	Verify(tokenString string) (*token.Identity, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	prefix    string
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. prefix is the expected
// Authorization scheme, compared case-insensitively; empty means "Bearer".
func NewAuthMiddleware(validator TokenValidator, prefix string, logger *zap.Logger) *AuthMiddleware {
	if prefix == "" {
		prefix = "Bearer"
	}
	return &AuthMiddleware{
		validator: validator,
		prefix:    prefix,
		logger:    logger,
	}
}

// RequireAuth is a middleware that requires a valid access token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		raw, ok := m.extractToken(r)
		if !ok {
			m.logger.Info("missing or malformed authorization header",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, CredentialsError)
			return
		}

		identity, err := m.validator.Verify(raw)
		if err != nil {
			m.logger.Info("token rejected",
				zap.String("request_id", requestID),
				zap.String("reason", string(token.RejectionReason(err))),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, CredentialsError)
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("username", identity.Username))

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
	})
}

// extractToken reads "<prefix> <token>" from the Authorization header
func (m *AuthMiddleware) extractToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, m.prefix) {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	return raw, true
}
