package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/amaglobal/ama/config"
)

// Claims defines JWT claims used in the application. Beyond the user id the
// token carries enough provider metadata to synthesize a profile row when a
// valid token arrives for a profile that does not exist yet.
type Claims struct {
	UserID      uint   `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Provider    string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// TokenIdentity is the signed-in identity embedded in a session token.
type TokenIdentity struct {
	UserID      uint
	Username    string
	Email       string
	DisplayName string
	AvatarURL   string
	Provider    string
}

// GenerateToken issues a JWT for the specified user identity.
func GenerateToken(id TokenIdentity, duration time.Duration) (string, error) {
	cfg := config.Get()

	claims := Claims{
		UserID:      id.UserID,
		Username:    id.Username,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		AvatarURL:   id.AvatarURL,
		Provider:    id.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken validates a JWT and returns its claims.
func ParseToken(tokenStr string) (*Claims, error) {
	cfg := config.Get()
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
