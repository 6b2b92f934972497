package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/classroom-backend/internal/config"
	"github.com/stemsi/classroom-backend/internal/model"
)

func testAuth(expiry time.Duration) *AuthService {
	return NewAuthService(&config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  expiry,
		BcryptCost: 4,
	}, nil)
}

func TestTokenRoundTrip(t *testing.T) {
	s := testAuth(time.Hour)

	tok, err := s.GenerateToken(42, model.RoleTeacher)
	require.NoError(t, err)

	claims, err := s.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, model.RoleTeacher, claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestValidateTokenRejectsExpiredAndForeign(t *testing.T) {
	s := testAuth(-time.Minute)
	tok, err := s.GenerateToken(1, model.RoleStudent)
	require.NoError(t, err)

	_, err = s.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)

	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour}, nil)
	tok, err = other.GenerateToken(1, model.RoleStudent)
	require.NoError(t, err)
	_, err = testAuth(time.Hour).ValidateToken(tok)
	assert.Error(t, err)
}

func TestValidateTokenRejectsUnknownRole(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		UserID:           1,
		Role:             "admin",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = testAuth(time.Hour).ValidateToken(tok)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	s := testAuth(time.Hour)
	hash, err := s.HashPassword("rahasia123")
	require.NoError(t, err)

	assert.NoError(t, s.CheckPassword(hash, "rahasia123"))
	assert.ErrorIs(t, s.CheckPassword(hash, "salah"), ErrInvalidCredentials)
}
