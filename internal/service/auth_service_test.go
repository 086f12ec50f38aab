package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-escrow/internal/config"
	"github.com/spec-kit/maintenance-escrow/internal/domain"
	"github.com/spec-kit/maintenance-escrow/internal/repository"
	"github.com/spec-kit/maintenance-escrow/internal/service"
	apperrors "github.com/spec-kit/maintenance-escrow/pkg/util"
)

func newAuthService() *service.AuthService {
	return service.NewAuthService(config.AuthConfig{
		JWTSecret:               "test-secret",
		AccessTokenTTLMinutes:   60,
		PasswordResetTTLMinutes: 30,
		BcryptCost:              4,
	}, repository.NewMemoryAccountRepository(), repository.NewMemoryPasswordResetRepository())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	account, token, _, err := svc.Register(ctx, "Nora Owner", "nora@example.com", "hunter22", domain.RoleOwner)
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.NotEmpty(t, token)
	assert.Equal(t, domain.RoleOwner, account.Role)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.AccountID)

	_, _, _, err = svc.Login(ctx, "Nora@Example.com ", "hunter22")
	require.NoError(t, err)

	_, _, _, err = svc.Login(ctx, "nora@example.com", "wrong")
	assert.Equal(t, "UNAUTHORIZED", apperrors.ToDomainError(err).Code)
}

func TestRegister_AdminRoleRefused(t *testing.T) {
	svc := newAuthService()

	_, _, _, err := svc.Register(context.Background(), "Root", "root@example.com", "pw", domain.RoleAdmin)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestRegister_DuplicateEmailConflict(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, "First", "dup@example.com", "pw1", domain.RoleTenant)
	require.NoError(t, err)

	_, _, _, err = svc.Register(ctx, "Second", "dup@example.com", "pw2", domain.RoleTenant)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestPasswordReset_Flow(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, "Theo Tenant", "theo@example.com", "old-pass", domain.RoleTenant)
	require.NoError(t, err)

	token, err := svc.RequestPasswordReset(ctx, "theo@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)

	require.NoError(t, svc.ConfirmPasswordReset(ctx, token.Token, "new-pass"))

	_, _, _, err = svc.Login(ctx, "theo@example.com", "new-pass")
	require.NoError(t, err)
	_, _, _, err = svc.Login(ctx, "theo@example.com", "old-pass")
	assert.Error(t, err)

	// A consumed token cannot be replayed.
	err = svc.ConfirmPasswordReset(ctx, token.Token, "third-pass")
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}
