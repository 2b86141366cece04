package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-backend/application/commands"
	"cms-backend/application/queries"
	"cms-backend/infrastructure/config"
	"cms-backend/pkg/auth"
)

func TestInitializeContainer_MemoryStore(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogLevel = "error"

	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, container.Tracing)
	require.NotNil(t, container.JWTValidator)
	assert.NoError(t, container.Ready(context.Background()))

	ctx := auth.WithPrincipal(context.Background(), auth.Principal{
		UserID: "ed", Roles: []string{auth.RoleEditor}, Tenants: []string{"t1"},
	})
	_, err = container.CommandBus.Send(ctx, commands.SaveCouponCommand{
		TenantID: "t1", CouponID: "c1", Code: "WELCOME", PercentOff: 15,
	})
	require.NoError(t, err)

	out, err := container.QueryBus.Ask(ctx, queries.FindCouponByCodeQuery{TenantID: "t1", Code: "welcome"})
	require.NoError(t, err)
	assert.Equal(t, "c1", out.(queries.CouponLookup).CouponID)
}

func TestInitializeContainer_RejectsBadLogLevel(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogLevel = "chatty"

	_, _, err := InitializeContainer(context.Background(), cfg)
	assert.Error(t, err)
}
