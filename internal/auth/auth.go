// Package auth provides the current-user lookup that gates admin-only
// realtime channels.
package auth

import (
	"context"
)

// Roles recognized by the CMS.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// User is the identity reported by the auth collaborator.
type User struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// CurrentUserProvider reports the identity of the current session. A nil
// user with a nil error means an anonymous (unauthenticated) context.
type CurrentUserProvider interface {
	CurrentUser(ctx context.Context) (*User, error)
}

// IsAdmin reports whether the user may subscribe admin-gated channels.
func IsAdmin(u *User) bool {
	return u != nil && u.Role == RoleAdmin
}

// StaticProvider always reports a fixed user. Used for local development
// and tests.
type StaticProvider struct {
	User *User
}

// CurrentUser implements CurrentUserProvider.
func (p *StaticProvider) CurrentUser(ctx context.Context) (*User, error) {
	return p.User, nil
}
