package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/config"
	"github.com/nordcrm/pipeline-api/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carries the actor identity inside an access token
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTValidator issues and validates HS256 access tokens
type JWTValidator struct {
	config *config.AuthConfig
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(cfg *config.AuthConfig) *JWTValidator {
	return &JWTValidator{config: cfg}
}

// ValidateToken validates a token and returns the actor context
func (v *JWTValidator) ValidateToken(tokenString string) (*ActorContext, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.config.JWTSecret), nil
	}, jwt.WithIssuer(v.config.JWTIssuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	role := domain.UserRole(claims.Role)
	if !role.IsValid() {
		role = domain.UserRoleAgent
	}

	actor := &ActorContext{
		DisplayName: claims.Name,
		Email:       claims.Email,
		Role:        role,
	}

	if claims.Subject != "" {
		if uid, err := uuid.Parse(claims.Subject); err == nil {
			actor.ActorID = &uid
		}
	}
	if actor.ActorID == nil {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return actor, nil
}

// IssueToken creates a signed token for the given user, used by tooling
// and tests
func (v *JWTValidator) IssueToken(userID uuid.UUID, name, email string, role domain.UserRole, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name:  name,
		Email: email,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    v.config.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(v.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
