package platformtest

import (
	"context"

	"sitesetup/internal/platform"
)

// Admin returns a context carrying an administrator.
func Admin(ctx context.Context) context.Context {
	return platform.WithUser(ctx, platform.User{Name: "admin", Role: platform.RoleAdministrator})
}

// Editor returns a context carrying an editor, who holds none of the setup capabilities.
func Editor(ctx context.Context) context.Context {
	return platform.WithUser(ctx, platform.User{Name: "editor", Role: platform.RoleEditor})
}
