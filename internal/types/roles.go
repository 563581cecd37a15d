// Package types provides the domain model shared by the hiring backend:
// job roles, approval requests, applications, assessment responses and the
// typed errors that cross package boundaries.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role is the closed set of actor roles known to the platform.
type Role string

// Role constants
const (
	RoleCandidate Role = "candidate"
	RoleEmployee  Role = "employee"
	RoleHR        Role = "hr"
	RoleAdmin     Role = "admin"
)

// AllRoles lists every valid role.
func AllRoles() []Role {
	return []Role{RoleCandidate, RoleEmployee, RoleHR, RoleAdmin}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCandidate, RoleEmployee, RoleHR, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts a raw role string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

// Principal is the authenticated actor behind a request.
type Principal struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// IsReviewer reports whether the principal may act as an approver (hr or admin).
func (p Principal) IsReviewer() bool {
	return p.Role == RoleHR || p.Role == RoleAdmin
}
