package valueobject

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	RoleAdmin      Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleFreelancer, RoleAdmin:
		return true
	}
	return false
}

// AuthenticatedUser: пользователь, от имени которого выполняется операция.
// Передаётся явно в каждый вызов жизненного цикла.
type AuthenticatedUser struct {
	ID   uuid.UUID
	Role Role
}

func NewAuthenticatedUser(id uuid.UUID, role string) (AuthenticatedUser, error) {
	r := Role(role)
	if id == uuid.Nil || !r.IsValid() {
		return AuthenticatedUser{}, apperror.ErrUnauthorized
	}
	return AuthenticatedUser{ID: id, Role: r}, nil
}

func (u AuthenticatedUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u AuthenticatedUser) IsClient() bool {
	return u.Role == RoleClient
}

func (u AuthenticatedUser) IsFreelancer() bool {
	return u.Role == RoleFreelancer
}
