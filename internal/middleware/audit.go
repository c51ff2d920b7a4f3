package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/forum-auth-api/internal/models"
)

type auditRecorder interface {
	Record(log *models.AuditLog)
}

// Audit records an audit entry after successful requests. Writes go
// through the async recorder and never block the response.
func Audit(recorder auditRecorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var actorID *string
		if claims, ok := ClaimsFromContext(c); ok {
			actorID = &claims.ActorID
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		recorder.Record(&models.AuditLog{
			ActorID:   actorID,
			Action:    action,
			Resource:  resource,
			NewValues: body,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
	}
}
