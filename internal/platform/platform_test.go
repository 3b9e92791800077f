package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleAuthorizer struct{}

func (roleAuthorizer) UserCan(ctx context.Context, c Capability) (bool, error) {
	u, ok := UserFrom(ctx)
	if !ok {
		return false, nil
	}
	return RoleCan(u.Role, c), nil
}

func TestRequire(t *testing.T) {
	admin := WithUser(context.Background(), User{Name: "root", Role: RoleAdministrator})
	editor := WithUser(context.Background(), User{Name: "ed", Role: RoleEditor})

	require.NoError(t, Require(admin, roleAuthorizer{}, CapInstallPlugins))

	err := Require(editor, roleAuthorizer{}, CapInstallPlugins)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbidden))
	var pe *PermissionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CapInstallPlugins, pe.Capability)

	assert.ErrorIs(t, Require(context.Background(), roleAuthorizer{}, CapManageOptions), ErrForbidden)
}

func TestRoleCanUnknownRole(t *testing.T) {
	assert.False(t, RoleCan("ghost", CapManageOptions))
	assert.True(t, RoleCan(RoleAdministrator, CapEditThemeOptions))
}
