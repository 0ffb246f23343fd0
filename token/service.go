package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultIssuer is the iss claim written into every token
	DefaultIssuer = "cryptohelms.io"

	// DefaultLifetime is one week
	DefaultLifetime = 7 * 24 * time.Hour
)

var signingMethod = jwt.SigningMethodHS256

// Config holds the token service settings
type Config struct {
	SecretKey []byte
	Audience  string
	Issuer    string
	Lifetime  time.Duration
	Leeway    time.Duration
}

// Service issues and verifies HMAC-signed access tokens.
// It is stateless after construction and safe for concurrent use.
type Service struct {
	key      []byte
	audience string
	issuer   string
	lifetime time.Duration
	parser   *jwt.Parser
	now      func() time.Time
}

// NewService creates a token service from cfg
func NewService(cfg Config) (*Service, error) {
	if len(cfg.SecretKey) == 0 {
		return nil, fmt.Errorf("%w: secret key is required", ErrInvalidConfig)
	}
	if cfg.Audience == "" {
		return nil, fmt.Errorf("%w: audience is required", ErrInvalidConfig)
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.Lifetime < 0 {
		return nil, fmt.Errorf("%w: lifetime must be positive", ErrInvalidConfig)
	}
	if cfg.Leeway < 0 {
		return nil, fmt.Errorf("%w: leeway must not be negative", ErrInvalidConfig)
	}

	key := make([]byte, len(cfg.SecretKey))
	copy(key, cfg.SecretKey)

	s := &Service{
		key:      key,
		audience: cfg.Audience,
		issuer:   cfg.Issuer,
		lifetime: cfg.Lifetime,
		now:      time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithAudience(cfg.Audience),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// Lifetime returns the default token lifetime
func (s *Service) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for identity with the configured lifetime
func (s *Service) Issue(identity *Identity) (string, error) {
	return s.IssueWithLifetime(identity, s.lifetime)
}

// IssueWithLifetime signs a token for identity that expires after lifetime.
// A negative lifetime yields a token that is already expired.
func (s *Service) IssueWithLifetime(identity *Identity, lifetime time.Duration) (string, error) {
	if err := identity.Validate(); err != nil {
		return "", err
	}

	now := s.now()
	claims := &Claims{
		Issuer:    s.issuer,
		Audience:  s.audience,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		Subject:   identity.Subject,
		Username:  identity.Username,
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, audience, issuer and validity window and returns
// the embedded identity. Any failure is a *RejectionError.
func (s *Service) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}
	tok, err := s.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	})
	if err != nil {
		return nil, reject(err)
	}
	if !tok.Valid {
		return nil, &RejectionError{Reason: ReasonClaims}
	}
	return claims.Identity(), nil
}

// IssueToken signs a token for identity with a one-off service using the
// default issuer.
func IssueToken(identity *Identity, secretKey, audience string, lifetimeMinutes int) (string, error) {
	s, err := NewService(Config{SecretKey: []byte(secretKey), Audience: audience})
	if err != nil {
		return "", err
	}
	return s.IssueWithLifetime(identity, time.Duration(lifetimeMinutes)*time.Minute)
}

// VerifyToken verifies a token with a one-off service using the default issuer
func VerifyToken(tokenString, secretKey, audience string) (*Identity, error) {
	s, err := NewService(Config{SecretKey: []byte(secretKey), Audience: audience})
	if err != nil {
		return nil, err
	}
	return s.Verify(tokenString)
}
