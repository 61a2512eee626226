package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/utn-records/enrollment-api/internal/models"
	"github.com/utn-records/enrollment-api/internal/repository"
)

// Audit records an audit log entry after successful mutating requests.
// The resource id is taken from the named route parameter when present.
func Audit(repo *repository.UserRepository, action, resource, idParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims, ok := CurrentClaims(c); ok {
			userID = &claims.UserID
		}

		var resourceID *string
		if idParam != "" {
			if value := c.Param(idParam); value != "" {
				resourceID = &value
			}
		}

		_ = repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		})
	}
}
