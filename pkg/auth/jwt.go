package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

const DefaultTokenLifetime = 7 * 24 * time.Hour

// Claims carried by a session token. Role is informational; authorization
// always uses the role stored on the account.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type JWTService interface {
	Issue(subject, role string) (string, error)
	Validate(token string) (*Claims, error)
}

type hmacService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewJWTService returns an HS256 token service.
func NewJWTService(secret string, lifetime time.Duration) JWTService {
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &hmacService{secret: []byte(secret), lifetime: lifetime, now: time.Now}
}

func (s *hmacService) Issue(subject, role string) (string, error) {
	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *hmacService) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
