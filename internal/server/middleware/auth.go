package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/llm-gateway/pkg/api"
)

// Auth checks for a valid Bearer token in the Authorization header. An empty
// key list disables the check, for local single-user deployments.
func Auth(keys []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}

	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			problem := api.UnauthorizedError("Missing Authorization header")
			c.AbortWithStatusJSON(problem.Status, problem)
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			problem := api.UnauthorizedError("Invalid Authorization header format")
			c.AbortWithStatusJSON(problem.Status, problem)
			return
		}

		if !allowed[parts[1]] {
			problem := api.UnauthorizedError("Invalid API key")
			c.AbortWithStatusJSON(problem.Status, problem)
			return
		}

		c.Next()
	}
}
