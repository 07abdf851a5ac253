package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vaultd/pkg/domain-errors"
)

func newTestService() *JWTService {
	return NewJWTService("test-signing-key", "vaultd", "vaultd")
}

func TestGenerateAndValidate(t *testing.T) {
	service := newTestService()

	token, err := service.GenerateAccessToken("alice", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
}

func TestValidateRejections(t *testing.T) {
	service := newTestService()

	t.Run("expired token", func(t *testing.T) {
		token, err := service.GenerateAccessToken("alice", -time.Minute)
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewJWTService("some-other-key", "vaultd", "vaultd")
		token, err := other.GenerateAccessToken("alice", time.Minute)
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := service.ValidateToken("not.a.token")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("empty subject", func(t *testing.T) {
		token, err := service.GenerateAccessToken("", time.Minute)
		require.NoError(t, err)

		_, err = service.ValidateToken(token)
		require.Error(t, err)
	})
}
