package models

import "github.com/google/uuid"

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Session identifies the user acting on a request or live view. It is
// extracted once at the edge and passed explicitly from there on.
type Session struct {
	UserID      uuid.UUID
	DisplayName string
	Role        Role
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}
