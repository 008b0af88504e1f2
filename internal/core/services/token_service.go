package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

// ErrInvalidToken wraps every reason a bearer token is refused.
var ErrInvalidToken = errors.New("invalid token")

const userLookupTimeout = 2 * time.Second

// TokenValidator resolves a bearer token to the user it was issued for.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

var (
	_ TokenIssuer    = (*TokenService)(nil)
	_ TokenValidator = (*TokenService)(nil)
)

// TokenService signs and checks HS256 session tokens. A token is only honoured
// while its subject still exists.
type TokenService struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
	users     domain.UserRepository
	parser    *jwt.Parser
	now       func() time.Time
}

func NewTokenService(secretKey string, issuer string, ttl time.Duration, users domain.UserRepository) *TokenService {
	s := &TokenService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		ttl:       ttl,
		users:     users,
		now:       time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s
}

func (s *TokenService) GenerateToken(userID string) (string, error) {
	issued := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("token service: sign: %w", err)
	}
	return signed, nil
}

// ValidateToken returns the subject of a well-formed, unexpired token from this
// issuer. The user lookup is bounded by ctx and a short timeout.
func (s *TokenService) ValidateToken(ctx context.Context, raw string) (string, error) {
	var claims jwt.RegisteredClaims
	if _, err := s.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, userLookupTimeout)
	defer cancel()

	if _, err := s.users.GetByID(lookupCtx, claims.Subject); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", fmt.Errorf("%w: subject no longer exists", ErrInvalidToken)
		}
		return "", fmt.Errorf("token service: user lookup: %w", err)
	}

	return claims.Subject, nil
}
