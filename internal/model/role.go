package model

import (
	"fmt"
	"strings"

	"github.com/tamir303/Afekaton2024/internal/errs"
)

// Role is the closed set of actor roles.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleResearcher  // tutor
	RoleParticipant // student
)

// String renders the canonical stored value.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleResearcher:
		return "Researcher"
	case RoleParticipant:
		return "Participant"
	default:
		return "Unknown"
	}
}

// ParseRole maps stored and legacy role strings onto Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "researcher", "tutor":
		return RoleResearcher, nil
	case "participant", "student":
		return RoleParticipant, nil
	}
	return RoleUnknown, fmt.Errorf("role %q: %w", s, errs.ErrBadRequest)
}
