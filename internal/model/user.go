package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent     Role = "student"
	RoleInstitution Role = "institution"
	RoleCompany     Role = "company"
	RoleAdmin       Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstitution, RoleCompany, RoleAdmin:
		return true
	}
	return false
}

// User is the stored credential record. PasswordResetTokenHash and
// PasswordResetExpiresAt are either both nil or both set.
type User struct {
	ID                     uuid.UUID  `db:"id"`
	FirstName              string     `db:"first_name"`
	LastName               string     `db:"last_name"`
	Email                  string     `db:"email"`
	PasswordHash           string     `db:"password_hash"`
	Role                   Role       `db:"role"`
	CreatedAt              time.Time  `db:"created_at"`
	PasswordResetTokenHash *string    `db:"password_reset_token_hash"`
	PasswordResetExpiresAt *time.Time `db:"password_reset_expires_at"`
}

// PublicUser is the shape returned to clients and attached to authenticated
// requests. It never carries the password hash or reset fields.
type PublicUser struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
