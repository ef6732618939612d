package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasklist/internal/apperrors"
)

func TestJWTService_IssueAndVerify(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.IssueAccessToken("alice@example.com")
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_Expiry(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.Issue("alice@example.com", 30*time.Minute)
	require.NoError(t, err)

	// simulate verification 31 minutes after issuance
	jwt.TimeFunc = func() time.Time { return time.Now().Add(31 * time.Minute) }
	defer func() { jwt.TimeFunc = time.Now }()

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestJWTService_VerifyFailuresAreUniform(t *testing.T) {
	svc := NewJWTService("test-secret")

	valid, err := svc.IssueAccessToken("alice@example.com")
	require.NoError(t, err)

	expired, err := svc.Issue("alice@example.com", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"malformed structure", "not-a-token"},
		{"truncated", valid[:len(valid)-1]},
		{"flipped signature byte", flipSignature(valid)},
		{"wrong key", mustSign(t, "other-secret", "alice@example.com")},
		{"expired", expired},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			// every failure mode collapses into the same error value
			assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
			assert.EqualError(t, err, apperrors.ErrInvalidToken.Error())
		})
	}
}

func TestJWTService_RejectsMissingSubject(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.IssueAccessToken("")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

// flipSignature changes the first character of the signature segment.
func flipSignature(token string) string {
	parts := strings.Split(token, ".")
	sig := parts[2]
	replacement := byte('A')
	if sig[0] == 'A' {
		replacement = 'B'
	}
	parts[2] = string(replacement) + sig[1:]
	return strings.Join(parts, ".")
}

func mustSign(t *testing.T, secret, subject string) string {
	t.Helper()
	token, err := NewJWTService(secret).IssueAccessToken(subject)
	require.NoError(t, err)
	return token
}
