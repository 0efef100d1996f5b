package auth

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidIssuer   = errors.New("invalid token issuer")
	ErrInvalidAudience = errors.New("invalid token audience")
)

type settings struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

var (
	mu      sync.RWMutex
	current = settings{
		secret:   []byte(getEnv("JWT_SECRET", "development-insecure-secret-change-me")),
		issuer:   getEnv("JWT_ISSUER", "travel-together-api"),
		audience: getEnv("JWT_AUDIENCE", "travel-together-clients"),
		ttl:      24 * time.Hour,
	}
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Configure replaces the signing secret, issuer, audience and token lifetime.
// Empty values keep the current setting.
func Configure(secret, issuer, audience string, ttl time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if secret != "" {
		current.secret = []byte(secret)
	}
	if issuer != "" {
		current.issuer = issuer
	}
	if audience != "" {
		current.audience = audience
	}
	if ttl > 0 {
		current.ttl = ttl
	}
}

func load() settings {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Claims represents the JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken generates a JWT token for the given user
func GenerateToken(userID, username string) (string, error) {
	s := load()
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*Claims, error) {
	s := load()
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != s.issuer {
		return nil, ErrInvalidIssuer
	}
	// Manually check audience for compatibility with jwt v5 types
	for _, aud := range claims.Audience {
		if aud == s.audience {
			return claims, nil
		}
	}
	return nil, ErrInvalidAudience
}
