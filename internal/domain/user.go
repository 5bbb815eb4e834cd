package domain

import (
	"slices"
	"time"
)

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// Caller is the authenticated principal making a request.
type Caller struct {
	ID    string
	Name  string
	Email string
	Roles []string
}

// HasRole reports whether the caller holds role.
func (c Caller) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (c Caller) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}
