package dto

import "github.com/noah-isme/sma-enrollment-api/internal/models"

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username  string `json:"username" validate:"required,max=64"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse is returned by POST /api/login.
type LoginResponse struct {
	Success bool            `json:"success"`
	User    models.UserInfo `json:"user"`
}

// CurrentUserResponse is returned by GET /api/user.
type CurrentUserResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *models.UserInfo `json:"user,omitempty"`
}
