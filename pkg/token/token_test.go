package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseJWT(t *testing.T) {
	tok, err := GenerateJWT("a@test.com", "Alice A", "chat_service")
	require.NoError(t, err)

	claims, err := ParseJWT(tok)
	require.NoError(t, err)
	assert.Equal(t, "a@test.com", claims.Email)
	assert.Equal(t, "Alice A", claims.Name)
	assert.Equal(t, "chat_service", claims.Issuer)
}

func TestParseJWTRejects(t *testing.T) {
	t.Run("garbage", func(t *testing.T) {
		_, err := ParseJWT("not-a-token")
		assert.Error(t, err)
	})

	t.Run("other secret", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Email: "a@test.com"}).SignedString([]byte("other"))
		require.NoError(t, err)
		_, err = ParseJWT(tok)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			Email: "a@test.com",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}).SignedString(JWTSecret)
		require.NoError(t, err)
		_, err = ParseJWT(tok)
		assert.Error(t, err)
	})

	t.Run("no email", func(t *testing.T) {
		tok, err := GenerateJWT("", "nobody", "chat_service")
		require.NoError(t, err)
		_, err = ParseJWT(tok)
		assert.Error(t, err)
	})
}
