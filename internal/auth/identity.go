// Package auth carries the signed-in user as an explicit value.
package auth

import (
	"errors"
	"os"
	"strings"
)

// Role is the dashboard role of a user.
type Role string

const (
	RoleClient    Role = "client"
	RoleDecorator Role = "decorator"
	RoleAdmin     Role = "admin"
)

// ErrMissingIdentity is returned when no user email is configured.
var ErrMissingIdentity = errors.New("user identity is not configured")

// Identity is the user on whose behalf bookings are made.
type Identity struct {
	Email string
	Name  string
	Role  Role
	Token string
}

// FromEnv reads the identity issued by the auth provider from the environment.
func FromEnv() (Identity, error) {
	id := Identity{
		Email: strings.TrimSpace(os.Getenv("LUXEPLAN_USER_EMAIL")),
		Name:  strings.TrimSpace(os.Getenv("LUXEPLAN_USER_NAME")),
		Role:  ParseRole(os.Getenv("LUXEPLAN_ROLE")),
		Token: os.Getenv("LUXEPLAN_TOKEN"),
	}
	if id.Email == "" {
		return Identity{}, ErrMissingIdentity
	}
	return id, nil
}

// ParseRole maps a role name to a Role. Unknown names fall back to client.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleDecorator:
		return RoleDecorator
	default:
		return RoleClient
	}
}

// CanBook reports whether the role may create or edit bookings.
func (i Identity) CanBook() bool {
	return i.Role == RoleClient || i.Role == RoleAdmin
}
