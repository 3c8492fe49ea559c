package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies a user's function in the approval chain
type Role string

const (
	RoleRequester  Role = "requester"
	RoleDirector   Role = "director"
	RoleCompliance Role = "compliance"
	RolePartner    Role = "partner"
	RoleFinance    Role = "finance"
	RoleAdmin      Role = "admin"
)

// User is a member of the firm's actor directory. Laurel only reads
// users; account management lives in the surrounding application.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (User) TableName() string {
	return "users"
}
