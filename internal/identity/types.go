// Package identity defines the trusted caller identity bound to connections and actions.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of platform roles.
type Role string

// Platform roles. Wire values are upper case.
const (
	RoleStudent Role = "STUDENT"
	RoleAlumni  Role = "ALUMNI"
	RoleAdmin   Role = "ADMIN"
)

// Roles lists every valid role.
var Roles = []Role{RoleStudent, RoleAlumni, RoleAdmin}

// Errors returned by identity validation.
var (
	ErrInvalidUserID = errors.New("invalid user id")
	ErrInvalidRole   = errors.New("invalid role")
)

// Valid reports whether r is one of Roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAlumni, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole normalizes raw (case and surrounding space insensitive) into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
	return role, nil
}

// Identity is a {user id, role} pair issued by the upstream session service.
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// New validates and normalizes a raw identity.
func New(userID, role string) (Identity, error) {
	userID = strings.TrimSpace(userID)
	if err := ValidateUserID(userID); err != nil {
		return Identity{}, err
	}
	r, err := ParseRole(role)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: userID, Role: r}, nil
}

// Validate checks an already-typed identity.
func (i Identity) Validate() error {
	if err := ValidateUserID(i.UserID); err != nil {
		return err
	}
	if !i.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, string(i.Role))
	}
	return nil
}

// IsZero reports whether no identity is set.
func (i Identity) IsZero() bool {
	return i.UserID == "" && i.Role == ""
}

const maxUserIDLen = 128

// ValidateUserID enforces a conservative ID charset so ids are safe inside channel names.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id required", ErrInvalidUserID)
	}
	if len(userID) > maxUserIDLen {
		return fmt.Errorf("%w: user id too long", ErrInvalidUserID)
	}
	for _, r := range userID {
		if r != '-' && r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return fmt.Errorf("%w: unexpected character %q", ErrInvalidUserID, r)
		}
	}
	return nil
}
