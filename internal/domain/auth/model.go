// Package auth authenticates dashboard admins against the admin_users
// collection and issues access tokens.
package auth

import (
	"time"

	"pacadmin/internal/docstore"
)

// Collection holds admin user documents, keyed by lowercase email.
const Collection = "admin_users"

// AdminUser is a dashboard administrator account.
type AdminUser struct {
	Email               string `json:"email"`
	PasswordHash        string `json:"-"`
	Name                string `json:"name,omitempty"`
	Role                string `json:"role"`
	IsActive            bool   `json:"isActive"`
	FailedLoginAttempts int64  `json:"-"`
	LockedUntil         int64  `json:"-"`
	LastLoginAt         int64  `json:"lastLoginAt,omitempty"`
	CreatedAt           int64  `json:"createdAt"`
}

// IsLocked reports whether the account is temporarily locked.
func (u *AdminUser) IsLocked(now time.Time) bool {
	return u.LockedUntil > 0 && now.UnixMilli() < u.LockedUntil
}

// Credentials for login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the result of a successful login.
type Session struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
}

func userFromDocument(d docstore.Document) *AdminUser {
	u := &AdminUser{
		Email:        d.String("email"),
		PasswordHash: d.String("passwordHash"),
		Name:         d.String("name"),
		Role:         d.String("role"),
		IsActive:     d.Bool("isActive"),
	}
	u.FailedLoginAttempts, _ = d.Int64("failedLoginAttempts")
	u.LockedUntil, _ = d.Int64("lockedUntil")
	u.LastLoginAt, _ = d.Int64("lastLoginAt")
	u.CreatedAt, _ = d.Int64("createdAt")
	return u
}
