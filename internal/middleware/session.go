package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
	"github.com/noah-isme/sma-enrollment-api/pkg/logger"
	"github.com/noah-isme/sma-enrollment-api/pkg/response"
)

// ContextSessionKey is the gin context key storing the resolved session.
const ContextSessionKey = "currentSession"

// SessionResolver turns a session token into the live session record.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*models.Session, error)
}

// Session protects routes by requiring a valid session cookie.
func Session(resolver SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := resolver.ResolveSession(c.Request.Context(), Token(c, cookieName))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		setSession(c, session)
		c.Next()
	}
}

// OptionalSession attaches the session when present but does not block.
func OptionalSession(resolver SessionResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := Token(c, cookieName)
		if token != "" {
			if session, err := resolver.ResolveSession(c.Request.Context(), token); err == nil {
				setSession(c, session)
			}
		}
		c.Next()
	}
}

// Token reads the session token from the cookie, falling back to a bearer header.
func Token(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// CurrentSession returns the session attached by Session or OptionalSession.
func CurrentSession(c *gin.Context) *models.Session {
	value, ok := c.Get(ContextSessionKey)
	if !ok {
		return nil
	}
	session, _ := value.(*models.Session)
	return session
}

func setSession(c *gin.Context, session *models.Session) {
	c.Set(ContextSessionKey, session)
	c.Set(logger.UserIDKey, session.UserID)
}

func abortUnauthorized(c *gin.Context) {
	response.Error(c, appErrors.ErrUnauthorized)
	c.Abort()
}
