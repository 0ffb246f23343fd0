package token

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

var subjectValidate = validator.New()

// Identity is what a token vouches for
type Identity struct {
	Subject  string `json:"sub"`
	Username string `json:"username"`
}

// Validate checks the identity can be carried by a token
func (i *Identity) Validate() error {
	if i == nil {
		return ErrIncompleteIdentity
	}
	if i.Subject == "" || i.Username == "" {
		return ErrIncompleteIdentity
	}
	if err := subjectValidate.Var(i.Subject, "required,email"); err != nil {
		return fmt.Errorf("%w: subject %q is not an email address", ErrIncompleteIdentity, i.Subject)
	}
	return nil
}

// Claims is the exact token payload. The audience is a single string,
// not the array form jwt.RegisteredClaims would emit.
type Claims struct {
	Issuer    string           `json:"iss"`
	Audience  string           `json:"aud"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
	Subject   string           `json:"sub"`
	Username  string           `json:"username"`
}

var _ jwt.Claims = (*Claims)(nil)

func (c *Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c *Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c *Claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c *Claims) GetIssuer() (string, error)                   { return c.Issuer, nil }
func (c *Claims) GetSubject() (string, error)                  { return c.Subject, nil }

func (c *Claims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

// Validate is run by the jwt parser after the registered claims pass
func (c *Claims) Validate() error {
	if c.IssuedAt == nil {
		return errors.New("iat claim is required")
	}
	if c.Subject == "" || c.Username == "" {
		return errors.New("sub and username claims are required")
	}
	return nil
}

// Identity returns the identity embedded in the claims
func (c *Claims) Identity() *Identity {
	return &Identity{Subject: c.Subject, Username: c.Username}
}
