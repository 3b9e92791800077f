package platform

import "context"

// Capability is a named host permission.
type Capability string

const (
	CapInstallPlugins   Capability = "install_plugins"
	CapActivatePlugins  Capability = "activate_plugins"
	CapManageOptions    Capability = "manage_options"
	CapEditThemeOptions Capability = "edit_theme_options"
)

// Role names.
const (
	RoleAdministrator = "administrator"
	RoleEditor        = "editor"
	RoleSubscriber    = "subscriber"
)

var roleCaps = map[string][]Capability{
	RoleAdministrator: {CapInstallPlugins, CapActivatePlugins, CapManageOptions, CapEditThemeOptions},
	RoleEditor:        {},
	RoleSubscriber:    {},
}

// RoleCan reports whether a role grants a capability. Unknown roles grant nothing.
func RoleCan(role string, c Capability) bool {
	for _, have := range roleCaps[role] {
		if have == c {
			return true
		}
	}
	return false
}

// User is the authenticated caller.
type User struct {
	Name string
	Role string
}

type userKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the user carried by ctx.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok
}
