package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilvogue/marketapi/internal/domain"
)

const testSecret = "test-secret-key-for-testing-purposes"

func newTestJWTService() *JWTService {
	return NewJWTService(testSecret, "veilvogue", 15*time.Minute)
}

func TestJWTService_RoundTrip(t *testing.T) {
	service := newTestJWTService()
	userID := uuid.New()

	token, expiresAt, err := service.GenerateAccessToken(userID, "layla@example.com", domain.RoleSeller)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	principal, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, principal.UserID)
	assert.Equal(t, "layla@example.com", principal.Email)
	assert.Equal(t, domain.RoleSeller, principal.Role)
	assert.True(t, principal.HasRole(domain.RoleSeller, domain.RoleAdmin))
	assert.False(t, principal.HasRole(domain.RoleCustomer))
}

func TestJWTService_Expired(t *testing.T) {
	service := NewJWTService(testSecret, "veilvogue", -time.Minute)

	token, _, err := service.GenerateAccessToken(uuid.New(), "a@example.com", domain.RoleCustomer)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_WrongSecret(t *testing.T) {
	other := NewJWTService("another-secret-key-that-is-long-enough", "veilvogue", time.Minute)
	token, _, err := other.GenerateAccessToken(uuid.New(), "a@example.com", domain.RoleCustomer)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_WrongIssuer(t *testing.T) {
	other := NewJWTService(testSecret, "someone-else", time.Minute)
	token, _, err := other.GenerateAccessToken(uuid.New(), "a@example.com", domain.RoleCustomer)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsBadClaims(t *testing.T) {
	service := newTestJWTService()
	sign := func(claims Claims) string {
		claims.Issuer = "veilvogue"
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return token
	}

	_, err := service.ValidateAccessToken(sign(Claims{UserID: "not-a-uuid", Role: "customer"}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = service.ValidateAccessToken(sign(Claims{UserID: uuid.NewString(), Role: "superuser"}))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = service.ValidateAccessToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
