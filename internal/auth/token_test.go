package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"Kaupa/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewTokenManager(testSecret)
	require.NoError(t, err)

	token, err := m.CreateToken("u1", model.RoleCustomer, time.Minute)
	require.NoError(t, err)

	identity, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, model.RoleCustomer, identity.Role)
}

func TestTokenManagerRejectsShortSecret(t *testing.T) {
	_, err := NewTokenManager("too short")
	assert.Error(t, err)
}

func TestVerifyExpiredToken(t *testing.T) {
	m, err := NewTokenManager(testSecret)
	require.NoError(t, err)

	token, err := m.CreateToken("u1", model.RoleCustomer, -time.Minute)
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyTokenFromOtherSecret(t *testing.T) {
	m1, err := NewTokenManager(testSecret)
	require.NoError(t, err)
	m2, err := NewTokenManager("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)

	token, err := m1.CreateToken("u1", model.RoleAdmin, time.Minute)
	require.NoError(t, err)

	_, err = m2.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyGarbageToken(t *testing.T) {
	m, err := NewTokenManager(testSecret)
	require.NoError(t, err)

	_, err = m.VerifyToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenRejectsUnknownRole(t *testing.T) {
	m, err := NewTokenManager(testSecret)
	require.NoError(t, err)

	token, err := m.CreateToken("u1", model.Role("WIZARD"), time.Minute)
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractTokenPrefersHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", ExtractToken(r))
}

func TestExtractTokenQueryFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	assert.Equal(t, "from-query", ExtractToken(r))
}

func TestExtractTokenMalformedHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Equal(t, "", ExtractToken(r))
}
