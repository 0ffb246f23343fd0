package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenRejected is matched by every verification failure
	ErrTokenRejected = errors.New("token rejected")

	// ErrIncompleteIdentity is returned when an identity cannot be put into a token
	ErrIncompleteIdentity = errors.New("identity requires an email subject and a username")

	// ErrInvalidConfig is returned by NewService for unusable settings
	ErrInvalidConfig = errors.New("invalid token service configuration")
)

// Reason classifies a rejection. It is meant for logs, never for clients.
type Reason string

const (
	ReasonMalformed   Reason = "malformed"
	ReasonSignature   Reason = "signature"
	ReasonAudience    Reason = "audience"
	ReasonIssuer      Reason = "issuer"
	ReasonExpired     Reason = "expired"
	ReasonNotYetValid Reason = "not_yet_valid"
	ReasonClaims      Reason = "claims"
)

// RejectionError is returned by Verify for any token that is not accepted
type RejectionError struct {
	Reason Reason
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token rejected (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("token rejected (%s)", e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTokenRejected) match any rejection
func (e *RejectionError) Is(target error) bool {
	return target == ErrTokenRejected
}

// RejectionReason extracts the reason from err, or "" when err is not a rejection
func RejectionReason(err error) Reason {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}

// reject maps a jwt parse error onto a rejection reason.
// Specific claim errors are checked before ErrTokenInvalidClaims because
// the parser joins them.
func reject(err error) *RejectionError {
	var reason Reason
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		reason = ReasonMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		reason = ReasonSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		reason = ReasonExpired
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		reason = ReasonNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		reason = ReasonAudience
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		reason = ReasonIssuer
	default:
		reason = ReasonClaims
	}
	return &RejectionError{Reason: reason, Err: err}
}
