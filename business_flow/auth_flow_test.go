package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) authFlow(t *testing.T) (AuthFlow, services.TokenService) {
	t.Helper()
	tokens, err := services.NewTokenService(time.Hour, 24*time.Hour, "leadflow", "leadflow-api", false, "", "", "test-secret", nil, "test:")
	require.NoError(t, err)
	return NewAuthFlow(e.admins, e.users, e.associates, e.companies, e.resolver, tokens, e.tx, e.logger), tokens
}

func TestAdminAuth(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	flow, tokens := env.authFlow(t)

	t.Run("RegisterOnlyOnce", func(t *testing.T) {
		admin, err := flow.RegisterAdmin(ctx, &dto.RegisterAdminRequest{Name: "Root", Email: "Root@Example.com", Password: "secret1", ConfirmPassword: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, "root@example.com", admin.Email)

		_, err = flow.RegisterAdmin(ctx, &dto.RegisterAdminRequest{Name: "Other", Email: "other@example.com", Password: "secret1", ConfirmPassword: "secret1"})
		assert.ErrorIs(t, err, ErrAdminAlreadyExists)
		assert.Equal(t, "Admin already exists. Only one admin allowed.", ErrorMessage(err))
	})

	t.Run("PasswordsMustMatch", func(t *testing.T) {
		_, err := flow.RegisterAdmin(ctx, &dto.RegisterAdminRequest{Name: "Root", Email: "x@example.com", Password: "secret1", ConfirmPassword: "secret2"})
		assert.True(t, IsValidation(err))
	})

	t.Run("Login", func(t *testing.T) {
		out, err := flow.LoginAdmin(ctx, &dto.LoginRequest{Email: "root@example.com", Password: "secret1"}, NewClientMetadata("127.0.0.1", "test"))
		require.NoError(t, err)
		assert.Equal(t, "Bearer", out.TokenType)
		assert.Equal(t, 3600, out.ExpiresIn)

		claims, err := tokens.ValidateToken(ctx, out.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, claims.Role)
		assert.Nil(t, claims.CompanyID)

		stored, err := env.admins.ByEmail(ctx, "root@example.com")
		require.NoError(t, err)
		assert.NotNil(t, stored.LastLoginAt)
	})

	t.Run("LoginFailures", func(t *testing.T) {
		_, err := flow.LoginAdmin(ctx, &dto.LoginRequest{Email: "nobody@example.com", Password: "secret1"}, nil)
		assert.ErrorIs(t, err, ErrAdminNotFound)

		_, err = flow.LoginAdmin(ctx, &dto.LoginRequest{Email: "root@example.com", Password: "wrong12"}, nil)
		assert.ErrorIs(t, err, ErrIncorrectPassword)
		assert.True(t, IsUnauthorized(err))
	})
}

func TestUserAuth(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	acme := env.company(t, "Acme")
	flow, tokens := env.authFlow(t)

	registered, err := flow.RegisterUser(ctx, &dto.RegisterUserRequest{
		FullName:    "Chitra Nair",
		Email:       "chitra@example.com",
		PhoneNumber: "1234567890",
		CompanyID:   acme.ID,
		Role:        models.RoleChannelPartner,
		Password:    "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", registered.CompanyName)

	t.Run("RegisterRejections", func(t *testing.T) {
		base := dto.RegisterUserRequest{FullName: "Asha Rao", Email: "asha@example.com", PhoneNumber: "1234500000", CompanyID: acme.ID, Role: models.RoleAgent, Password: "secret1"}

		dup := base
		dup.PhoneNumber = "1234567890"
		_, err := flow.RegisterUser(ctx, &dup)
		assert.ErrorIs(t, err, ErrEmailOrPhoneInUse)

		noCompany := base
		noCompany.CompanyID = 404
		_, err = flow.RegisterUser(ctx, &noCompany)
		assert.ErrorIs(t, err, ErrCompanyNotFound)

		badRole := base
		badRole.Role = models.RoleAdmin
		_, err = flow.RegisterUser(ctx, &badRole)
		assert.True(t, IsValidation(err))

		badPhone := base
		badPhone.PhoneNumber = "12345"
		_, err = flow.RegisterUser(ctx, &badPhone)
		assert.True(t, IsValidation(err))
	})

	t.Run("LoginCarriesCompanyClaim", func(t *testing.T) {
		out, err := flow.LoginUser(ctx, &dto.LoginRequest{Email: "chitra@example.com", Password: "secret1"}, nil)
		require.NoError(t, err)
		assert.False(t, out.IsAssociate)

		claims, err := tokens.ValidateToken(ctx, out.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, claims.PrincipalID.String())
		require.NotNil(t, claims.CompanyID)
		assert.Equal(t, acme.ID, *claims.CompanyID)
	})

	t.Run("AssociateFallback", func(t *testing.T) {
		creator, err := env.resolver.Resolve(ctx, mustUser(t, env, registered.Email).UUID)
		require.NoError(t, err)
		_, err = env.userAdminFlow().CreateAssociate(ctx, creator, &dto.CreateAssociateRequest{
			FullName: "Dev Patel", Email: "dev@example.com", PhoneNumber: "1234511111", Role: models.RoleAgent, Password: "secret1",
		})
		require.NoError(t, err)

		out, err := flow.LoginUser(ctx, &dto.LoginRequest{Email: "dev@example.com", Password: "secret1"}, nil)
		require.NoError(t, err)
		assert.True(t, out.IsAssociate)

		_, err = flow.LoginAssociate(ctx, &dto.LoginRequest{Email: "dev@example.com", Password: "secret1"}, nil)
		require.NoError(t, err)

		_, err = flow.LoginAssociate(ctx, &dto.LoginRequest{Email: "chitra@example.com", Password: "secret1"}, nil)
		assert.ErrorIs(t, err, ErrPrincipalNotFound)
	})

	t.Run("InactiveAccountCannotLogin", func(t *testing.T) {
		_, err := env.users.UpdateStatus(ctx, mustUser(t, env, registered.Email).UUID, models.UserStatusInactive)
		require.NoError(t, err)
		defer func() { _, _ = env.users.UpdateStatus(ctx, mustUser(t, env, registered.Email).UUID, models.UserStatusActive) }()

		_, err = flow.LoginUser(ctx, &dto.LoginRequest{Email: "chitra@example.com", Password: "secret1"}, nil)
		assert.ErrorIs(t, err, ErrAccountInactive)
		assert.Equal(t, "Your Account is Inactive. Please Contact with Admin to make Account Active.", ErrorMessage(err))
	})

	t.Run("RefreshRotatesAndRejectsAccessTokens", func(t *testing.T) {
		login, err := flow.LoginUser(ctx, &dto.LoginRequest{Email: "chitra@example.com", Password: "secret1"}, nil)
		require.NoError(t, err)

		pair, err := flow.RefreshToken(ctx, &dto.RefreshTokenRequest{RefreshToken: login.RefreshToken})
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)

		_, err = flow.RefreshToken(ctx, &dto.RefreshTokenRequest{RefreshToken: login.AccessToken})
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Me", func(t *testing.T) {
		me, err := flow.Me(ctx, principalFromUser(mustUser(t, env, registered.Email)))
		require.NoError(t, err)
		assert.Equal(t, registered.ID, me.ID)

		_, err = flow.Me(ctx, nil)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func mustUser(t *testing.T, env *testEnv, email string) *models.User {
	t.Helper()
	u, err := env.users.ByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}
