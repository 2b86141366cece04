package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-backend/application/ports"
	"cms-backend/domain/keyspace"
	pkgerrors "cms-backend/pkg/errors"
)

const secret = "test-secret"

func TestJWTValidator(t *testing.T) {
	validator, err := NewJWTValidator(JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     secret,
		Issuer:        "cms",
		Audience:      []string{"cms-api"},
	})
	require.NoError(t, err)

	p := Principal{UserID: "u1", Email: "u1@example.com", Roles: []string{RoleEditor}, Tenants: []string{"t1"}}

	t.Run("Should accept a token it can verify", func(t *testing.T) {
		token, err := SignHS256(secret, "cms", []string{"cms-api"}, p, time.Hour)
		require.NoError(t, err)

		claims, err := validator.ValidateToken("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, p, claims.Principal())
	})

	t.Run("Should reject an expired token", func(t *testing.T) {
		token, err := SignHS256(secret, "cms", []string{"cms-api"}, p, -time.Hour)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("Should reject a token signed with another secret", func(t *testing.T) {
		token, err := SignHS256("other", "cms", []string{"cms-api"}, p, time.Hour)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("Should reject the wrong audience and issuer", func(t *testing.T) {
		token, err := SignHS256(secret, "cms", []string{"elsewhere"}, p, time.Hour)
		require.NoError(t, err)
		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)

		token, err = SignHS256(secret, "someone", []string{"cms-api"}, p, time.Hour)
		require.NoError(t, err)
		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("Should reject an empty token", func(t *testing.T) {
		_, err := validator.ValidateToken("  ")
		assert.True(t, errors.Is(err, ErrMissingToken))
	})
}

func TestNewJWTValidator_Config(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256"})
	assert.Error(t, err)

	_, err = NewJWTValidator(JWTConfig{SigningMethod: "RS256"})
	assert.Error(t, err)

	_, err = NewJWTValidator(JWTConfig{SigningMethod: "none", SecretKey: "x"})
	assert.Error(t, err)
}

func TestRoleAuthorizer(t *testing.T) {
	a := NewRoleAuthorizer(nil)
	t1 := keyspace.Scope("TENANT#t1")
	t2 := keyspace.Scope("TENANT#t2")

	as := func(roles ...string) context.Context {
		return WithPrincipal(context.Background(), Principal{UserID: "u", Roles: roles, Tenants: []string{"t1"}})
	}

	tests := []struct {
		name  string
		ctx   context.Context
		scope keyspace.Scope
		perm  ports.Permission
		check func(error) bool
	}{
		{"anonymous", context.Background(), t1, ports.PermissionRead, pkgerrors.IsUnauthorized},
		{"viewer reads", as(RoleViewer), t1, ports.PermissionRead, nil},
		{"viewer writes", as(RoleViewer), t1, ports.PermissionWrite, pkgerrors.IsForbidden},
		{"editor writes", as(RoleEditor), t1, ports.PermissionWrite, nil},
		{"editor in other tenant", as(RoleEditor), t2, ports.PermissionRead, pkgerrors.IsForbidden},
		{"editor audits", as(RoleEditor), t1, ports.PermissionAudit, pkgerrors.IsForbidden},
		{"editor in system scope", as(RoleEditor), keyspace.SystemScope, ports.PermissionRead, pkgerrors.IsForbidden},
		{"admin anywhere", as(RoleAdmin), t2, ports.PermissionAudit, nil},
		{"admin in system scope", as(RoleAdmin), keyspace.SystemScope, ports.PermissionWrite, nil},
		{"malformed scope", as(RoleAdmin), keyspace.Scope("bogus"), ports.PermissionRead, pkgerrors.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Authorize(tt.ctx, tt.scope, tt.perm)
			if tt.check == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
}

func TestActor(t *testing.T) {
	assert.Equal(t, "system", Actor(context.Background()))
	assert.Equal(t, "u9", Actor(WithPrincipal(context.Background(), Principal{UserID: "u9"})))
}
