package ajax

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"sitesetup/internal/config"
	"sitesetup/internal/platform"
)

// TokenAuth resolves bearer tokens to host users.
type TokenAuth struct {
	users []tokenUser
}

type tokenUser struct {
	token []byte
	user  platform.User
}

// NewTokenAuth builds the token table from the auth config section.
func NewTokenAuth(users []config.UserToken) (*TokenAuth, error) {
	a := &TokenAuth{}
	for _, u := range users {
		if u.Token == "" || u.Name == "" {
			return nil, fmt.Errorf("auth user %q needs a name and a token", u.Name)
		}
		a.users = append(a.users, tokenUser{
			token: []byte(u.Token),
			user:  platform.User{Name: u.Name, Role: u.Role},
		})
	}
	return a, nil
}

// Resolve returns the user for the request. ok is false when a token was sent
// but matched nobody; a request without a token is anonymous.
func (a *TokenAuth) Resolve(r *http.Request) (user platform.User, ok bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return platform.User{}, true
	}
	token, found := strings.CutPrefix(h, "Bearer ")
	if !found {
		return platform.User{}, false
	}
	for _, u := range a.users {
		if subtle.ConstantTimeCompare(u.token, []byte(token)) == 1 {
			return u.user, true
		}
	}
	return platform.User{}, false
}
