package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/internal/service"
)

// Audit records an audit entry after a successful request. Domain mutations
// are audited by their services; this covers read-style actions such as exports.
func Audit(recorder service.AuditRecorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}

		var userID *int64
		if session := CurrentSession(c); session != nil {
			id := session.UserID
			userID = &id
		}

		recorder.Record(models.AuditEntry{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: c.Param("id"),
			Details: map[string]interface{}{
				"path":    c.FullPath(),
				"method":  c.Request.Method,
				"status":  c.Writer.Status(),
				"latency": time.Since(start).Milliseconds(),
			},
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
	}
}
