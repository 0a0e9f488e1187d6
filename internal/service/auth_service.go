package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
)

// Common auth errors.
var (
	ErrTokenRevoked = errors.New("token has been revoked")
	ErrEmptySubject = errors.New("token subject is required")
)

// TokenType distinguishes candidate vs proctor tokens.
type TokenType string

const (
	TokenTypeCandidate TokenType = "candidate"
	TokenTypeProctor   TokenType = "proctor"
)

// ScopeAllTests grants a proctor access to every test.
const ScopeAllTests = "*"

// Claims extends JWT standard claims with app-specific fields. The subject
// is the candidate or proctor identifier.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	Name      string    `json:"name,omitempty"`
	// Scopes lists the test ids a proctor token may manage.
	Scopes []string `json:"scopes,omitempty"`
}

// AuthService issues and validates JWTs. Credentials are verified upstream;
// this service only trusts its own signatures.
type AuthService struct {
	secret []byte
	expiry time.Duration
	rdb    *redis.Client
}

// NewAuthService creates a new AuthService. rdb may be nil, in which case
// revocation is not checked.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{secret: []byte(cfg.JWTSecret), expiry: cfg.JWTExpiry, rdb: rdb}
}

// GenerateToken signs a token for subject. Scopes only matter for proctor
// tokens.
func (s *AuthService) GenerateToken(subject, name string, tokenType TokenType, scopes ...string) (string, *Claims, error) {
	if subject == "" {
		return "", nil, ErrEmptySubject
	}
	now := time.Now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		TokenType: tokenType,
		Name:      name,
		Scopes:    scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, ErrEmptySubject
	}

	return claims, nil
}

// RevokeToken blocks a token id until it would have expired anyway.
func (s *AuthService) RevokeToken(ctx context.Context, jti string, until time.Time) error {
	if s.rdb == nil {
		return errors.New("revocation store not configured")
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, config.CacheKey.RevokedTokenKey(jti), 1, ttl).Err()
}

// CheckRevoked returns ErrTokenRevoked when jti was revoked.
func (s *AuthService) CheckRevoked(ctx context.Context, jti string) error {
	if s.rdb == nil || jti == "" {
		return nil
	}
	n, err := s.rdb.Exists(ctx, config.CacheKey.RevokedTokenKey(jti)).Result()
	if err != nil {
		return fmt.Errorf("check revocation: %w", err)
	}
	if n > 0 {
		return ErrTokenRevoked
	}
	return nil
}
