package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestJWTVerifierAcceptsValidToken(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret, "gaia-runtime")

	token := signToken(t, secret, jwt.MapClaims{
		"sub":   "player-1",
		"iss":   "gaia-runtime",
		"admin": true,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "player-1", id.PlayerID)
	assert.True(t, id.Admin)
}

func TestJWTVerifierDefaultsAdminFalse(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret, "")

	token := signToken(t, secret, jwt.MapClaims{"sub": "player-1"})
	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, id.Admin)
}

func TestJWTVerifierRejectsWrongSecret(t *testing.T) {
	v := NewJWTVerifier([]byte("correct-secret"), "")
	token := signToken(t, []byte("wrong-secret"), jwt.MapClaims{"sub": "player-1"})

	_, err := v.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestJWTVerifierRejectsMismatchedIssuer(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret, "gaia-runtime")
	token := signToken(t, secret, jwt.MapClaims{"sub": "player-1", "iss": "someone-else"})

	_, err := v.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestJWTVerifierRejectsMissingSubject(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret, "")
	token := signToken(t, secret, jwt.MapClaims{})

	_, err := v.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestJWTVerifierRejectsMalformedToken(t *testing.T) {
	v := NewJWTVerifier([]byte("secret"), "")
	_, err := v.Verify(context.Background(), "not-a-jwt")
	assert.Error(t, err)
}
