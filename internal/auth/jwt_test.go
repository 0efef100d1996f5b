package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("u-1", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "u-1", claims.Subject)
}

func TestValidateToken_Invalid(t *testing.T) {
	_, err := ValidateToken("invalid.token")
	require.Error(t, err)
}

func TestValidateToken_WrongAudience(t *testing.T) {
	s := load()
	claims := Claims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{"someone-else"},
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	require.NoError(t, err)

	_, err = ValidateToken(token)
	require.ErrorIs(t, err, ErrInvalidAudience)
}

func TestConfigureRotatesSecret(t *testing.T) {
	saved := load()
	t.Cleanup(func() {
		mu.Lock()
		current = saved
		mu.Unlock()
	})

	token, err := GenerateToken("u-1", "alice")
	require.NoError(t, err)

	Configure("another-secret", "", "", 0)
	_, err = ValidateToken(token)
	require.Error(t, err)

	fresh, err := GenerateToken("u-1", "alice")
	require.NoError(t, err)
	_, err = ValidateToken(fresh)
	require.NoError(t, err)
}
