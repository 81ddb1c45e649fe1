package service

import (
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

// authorize checks the session against the roles an operation accepts.
// A nil session is unauthenticated; a role outside the enumeration is refused.
func authorize(session *models.Session, allowed ...models.UserRole) error {
	if session == nil {
		return appErrors.ErrUnauthorized
	}
	switch session.Role {
	case models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, role := range allowed {
		if session.Role == role {
			return nil
		}
	}
	return appErrors.ErrForbidden
}

func userIDPtr(session *models.Session) *int64 {
	if session == nil {
		return nil
	}
	id := session.UserID
	return &id
}

// authorizeAdmin additionally requires the admin flag that only an admin login sets.
func authorizeAdmin(session *models.Session) error {
	if err := authorize(session, models.RoleAdmin); err != nil {
		return err
	}
	if !session.AdminLoggedIn {
		return appErrors.ErrForbidden
	}
	return nil
}
