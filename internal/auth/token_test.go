package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-escrow/internal/auth"
	"github.com/spec-kit/maintenance-escrow/internal/domain"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", 60)

	token, exp, err := tm.GenerateToken("acc_1", domain.RoleOwner)
	require.NoError(t, err)
	assert.False(t, exp.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acc_1", claims.AccountID)
	assert.Equal(t, domain.RoleOwner, claims.Role)
}

func TestTokenManager_WrongSecretRejected(t *testing.T) {
	token, _, err := auth.NewTokenManager("secret-a", 60).GenerateToken("acc_1", domain.RolePro)
	require.NoError(t, err)

	_, err = auth.NewTokenManager("secret-b", 60).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_GarbageRejected(t *testing.T) {
	_, err := auth.NewTokenManager("secret", 60).ParseToken("not-a-token")
	assert.Error(t, err)
}

func TestPassword_HashAndCompare(t *testing.T) {
	hash, err := auth.HashPassword("s3cret-pass", 0)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.NoError(t, auth.ComparePassword(hash, "s3cret-pass"))
	assert.Error(t, auth.ComparePassword(hash, "wrong"))
}
