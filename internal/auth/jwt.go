// Package auth validates the operator tokens that guard the admin and status
// endpoints. Tokens are HS256 JWTs carrying an operator role claim.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleOperator is the only role accepted by the admin endpoints.
const RoleOperator = "operator"

// DefaultTokenTTL is how long issued operator tokens are valid.
const DefaultTokenTTL = 1 * time.Hour

// Predefined token errors.
var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrForbiddenRole      = errors.New("token does not carry the operator role")
	ErrMissingSigningKey  = errors.New("jwt signing key not configured")
)

// Claims are the claims of an operator token.
type Claims struct {
	jwt.RegisteredClaims

	Role string `json:"role"`
}

// JWTConfig holds configuration for the JWT service.
type JWTConfig struct {
	// SigningKey is the HS256 secret.
	SigningKey string

	// Issuer is the issuer claim, e.g. "airexposure".
	Issuer string

	// Audience is the audience claim.
	// Default: "airexposure-admin"
	Audience string

	// TTL is the lifetime of issued tokens.
	// Default: 1 hour
	TTL time.Duration
}

// JWTService issues and validates operator tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
}

// NewJWTService creates a JWT service. An empty signing key is rejected so
// the admin surface is never protected by a guessable default.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.SigningKey == "" {
		return nil, ErrMissingSigningKey
	}
	if cfg.Audience == "" {
		cfg.Audience = "airexposure-admin"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		ttl:        cfg.TTL,
	}, nil
}

// IssueOperatorToken signs a token for subject with the operator role.
func (s *JWTService) IssueOperatorToken(subject string) (string, time.Time, error) {
	return s.issue(subject, RoleOperator, time.Now())
}

func (s *JWTService) issue(subject, role string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing operator token: %w", err)
	}
	return token, expiresAt, nil
}

// ValidateAccessToken checks signature, issuer, audience and expiry and
// requires the operator role.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidAccessToken
	}
	if claims.Role != RoleOperator {
		return nil, ErrForbiddenRole
	}
	return claims, nil
}
