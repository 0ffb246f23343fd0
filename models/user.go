package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cryptohelms/backend/token"
)

// User is a stored account. Password holds the derived hash, never plaintext.
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Username      string    `json:"username" db:"username"`
	Email         string    `json:"email" db:"email"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	Password      string    `json:"-" db:"password"`
	Salt          string    `json:"-" db:"salt"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	IsSuperuser   bool      `json:"is_superuser" db:"is_superuser"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// NewUser creates an active, unverified user holding already derived credentials
func NewUser(username, email, passwordHash, salt string) *User {
	now := time.Now().UTC()
	return &User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		Password:  passwordHash,
		Salt:      salt,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Identity returns what an access token for this user vouches for
func (u *User) Identity() *token.Identity {
	return &token.Identity{Subject: u.Email, Username: u.Username}
}

// Public strips the credentials
func (u *User) Public() *UserPublic {
	return &UserPublic{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		IsActive:      u.IsActive,
		IsSuperuser:   u.IsSuperuser,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// UserPublic is the user as returned to clients
type UserPublic struct {
	ID            uuid.UUID    `json:"id"`
	Username      string       `json:"username"`
	Email         string       `json:"email"`
	EmailVerified bool         `json:"email_verified"`
	IsActive      bool         `json:"is_active"`
	IsSuperuser   bool         `json:"is_superuser"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	AccessToken   *AccessToken `json:"access_token,omitempty"`
}

// UserCreate is the registration payload
type UserCreate struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=7,max=100"`
	Username string `json:"username" validate:"required,username"`
}

// NewUserRequest wraps UserCreate the way registration clients send it
type NewUserRequest struct {
	NewUser *UserCreate `json:"new_user" validate:"required"`
}
