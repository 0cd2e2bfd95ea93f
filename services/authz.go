package services

import (
	"crypto/subtle"

	"github.com/szabolcsnagy0/kindly/apperrors"
	"github.com/szabolcsnagy0/kindly/models"
)

// Role is the capability a caller acts with. A user holds exactly one.
type Role int

const (
	RoleHelpSeeker Role = iota + 1
	RoleVolunteer
)

func (r Role) String() string {
	switch r {
	case RoleHelpSeeker:
		return "help_seeker"
	case RoleVolunteer:
		return "volunteer"
	default:
		return "unknown"
	}
}

// Caller is the authenticated identity an operation runs for.
type Caller struct {
	UserID uint
	Role   Role
}

func RoleOf(u models.User) Role {
	if u.IsVolunteer {
		return RoleVolunteer
	}
	return RoleHelpSeeker
}

func CallerFor(u models.User) Caller {
	return Caller{UserID: u.ID, Role: RoleOf(u)}
}

// RequireRole fails closed unless the caller acts with role.
func RequireRole(caller Caller, role Role) error {
	if caller.UserID == 0 || caller.Role != role {
		return apperrors.ErrNotAuthorized
	}
	return nil
}

// AdminToken is the shared secret presented to admin operations.
type AdminToken string

type AdminGuard struct {
	secret []byte
}

func NewAdminGuard(secret string) *AdminGuard {
	return &AdminGuard{secret: []byte(secret)}
}

// Allow compares token with the configured secret in constant time.
// An unset secret denies everything.
func (g *AdminGuard) Allow(token AdminToken) bool {
	if g == nil || len(g.secret) == 0 || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), g.secret) == 1
}
