package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	apperrors "yalla-chat/errors"
)

// CustomClaims defines the structure of the data stored inside the JWT
// issued by the platform's auth service.
type CustomClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Verifier validates the opaque bearer credential presented at
// connection time. Purely functional for a fixed key; no side effects.
type Verifier struct {
	key []byte
}

func NewVerifier(key []byte) Verifier {
	return Verifier{key: key}
}

// Verify parses and validates signature and expiration of a token and
// returns the stable user identifier it carries. Every failure mode
// (missing, malformed, expired, bad signature, no user id) collapses to
// ErrInvalidToken: callers must refuse the connection before recording
// any state.
func (v Verifier) Verify(tokenString string) (*CustomClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty credential", apperrors.ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token carries no user id", apperrors.ErrInvalidToken)
	}
	return claims, nil
}
