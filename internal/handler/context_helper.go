package handler

import "github.com/gin-gonic/gin"

// studentParam returns the student id route parameter, accepting both the
// nested (:studentId) and flat (:id) spellings.
func studentParam(c *gin.Context) string {
	if id := c.Param("studentId"); id != "" {
		return id
	}
	return c.Param("id")
}
