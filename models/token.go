package models

// TokenTypeBearer is the only token type handed out
const TokenTypeBearer = "bearer"

// AccessToken is the login response body
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// NewAccessToken wraps a signed token as a bearer token
func NewAccessToken(signed string) *AccessToken {
	return &AccessToken{AccessToken: signed, TokenType: TokenTypeBearer}
}
