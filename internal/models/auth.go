package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the server-side record behind a session cookie.
type Session struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"user_id"`
	Role          UserRole  `json:"role"`
	AdminLoggedIn bool      `json:"admin_logged_in"`
	IPAddress     string    `json:"ip_address,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// HasRole reports whether the session role is one of roles.
func (s *Session) HasRole(roles ...UserRole) bool {
	if s == nil {
		return false
	}
	for _, role := range roles {
		if s.Role == role {
			return true
		}
	}
	return false
}

// SessionClaims is the signed payload carried by the session cookie.
type SessionClaims struct {
	SessionID string   `json:"sid"`
	UserID    int64    `json:"user_id"`
	Role      UserRole `json:"role"`
	jwt.RegisteredClaims
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      UserInfo
	Session   *Session
}
