package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
	"github.com/noah-isme/sma-enrollment-api/pkg/response"
)

// RequireRoles rejects callers whose role is not listed. It runs before any
// payload binding so a wrong role is Forbidden whatever the body holds.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		session := CurrentSession(c)
		if session == nil {
			abortUnauthorized(c)
			return
		}
		switch session.Role {
		case models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
			if _, ok := allowed[session.Role]; ok {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// AdminArea guards the server-rendered back-office. Anonymous visitors are
// sent to loginPath; a session without the admin flag gets a 403 page.
func AdminArea(resolver SessionResolver, cookieName, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := resolver.ResolveSession(c.Request.Context(), Token(c, cookieName))
		if err != nil {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		setSession(c, session)
		if session.Role != models.RoleAdmin || !session.AdminLoggedIn {
			c.Data(http.StatusForbidden, "text/html; charset=utf-8", []byte(forbiddenPage))
			c.Abort()
			return
		}
		c.Next()
	}
}

const forbiddenPage = `<!doctype html><html><head><title>Forbidden</title></head>` +
	`<body><h1>403 Forbidden</h1><p>You do not have permission to access the admin area.</p></body></html>`
