package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role grants access levels, ordered admin > master > operator > viewer
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleMaster   Role = "master"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleMaster:   3,
	RoleAdmin:    4,
}

func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// Allows reports whether r is at least as privileged as min
func (r Role) Allows(min Role) bool {
	return r.IsValid() && roleRank[r] >= roleRank[min]
}

// LoginDomain is appended to usernames that are not already e-mail addresses
const LoginDomain = "ordini.local"

// LoginEmail maps a bare username onto the internal login address
func LoginEmail(username string) string {
	username = strings.TrimSpace(username)
	if strings.Contains(username, "@") {
		return username
	}
	return username + "@" + LoginDomain
}

// User is a staff account
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
