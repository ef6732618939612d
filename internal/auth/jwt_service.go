package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"tasklist/internal/apperrors"
)

// AccessTokenExpiry is the duration for which access tokens are valid.
const AccessTokenExpiry = 30 * time.Minute

// Claims represents JWT claims. The subject is the identity's email.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTService issues and verifies HMAC-signed bearer tokens.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service with the given secret. The secret is
// process-wide configuration, injected once at startup.
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
	}
}

// Issue signs a token for the given subject, valid for ttl.
func (s *JWTService) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// IssueAccessToken signs a token for the subject with the default expiry.
func (s *JWTService) IssueAccessToken(subject string) (string, error) {
	return s.Issue(subject, AccessTokenExpiry)
}

// Verify validates a token and returns its claims. Every failure mode —
// malformed structure, signature mismatch, expiry, missing subject — collapses
// into apperrors.ErrInvalidToken so callers cannot leak which check failed.
func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, apperrors.ErrInvalidToken
	}

	return claims, nil
}
