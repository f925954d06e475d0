package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService() *TokenService {
	return NewTokenService("test-secret-key-for-testing-purposes", 15*time.Minute)
}

func TestTokenService_Generate(t *testing.T) {
	service := newTestTokenService()

	token, expiresAt, err := service.Generate("sess-1", "user-123", "ana@example.com", "user", "cart-9")

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))
}

func TestTokenService_Validate_Valid(t *testing.T) {
	service := newTestTokenService()

	token, _, err := service.Generate("sess-1", "user-456", "ana@example.com", "admin", "cart-1")
	require.NoError(t, err)

	claims, err := service.Validate(token)

	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "user-456", claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "cart-1", claims.CartID)
	assert.Equal(t, "user-456", claims.Subject)
}

func TestTokenService_Validate_Expired(t *testing.T) {
	service := NewTokenService("test-secret", time.Millisecond)

	token, _, err := service.Generate("sess-1", "user-123", "ana@example.com", "user", "cart-1")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	claims, err := service.Validate(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestTokenService_Validate_Invalid(t *testing.T) {
	service := newTestTokenService()

	other := NewTokenService("a-different-secret", 15*time.Minute)
	foreign, _, err := other.Generate("sess-1", "user-1", "ana@example.com", "user", "cart-1")
	require.NoError(t, err)

	noSession := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	noSessionToken, err := noSession.SignedString([]byte("test-secret-key-for-testing-purposes"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", foreign},
		{"missing session id", noSessionToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestTokenService_Validate_RejectsNoneAlgorithm(t *testing.T) {
	service := newTestTokenService()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SessionID: "sess-1"})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.Validate(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
