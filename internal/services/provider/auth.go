package provider

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	HeaderProjectID = "X-ProjectId"
	projectIDKey    = "projectId"
)

// BearerGuard admits a request only when X-ProjectId is present and the
// Authorization header carries a valid access token issued for that project.
func BearerGuard(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.GetHeader(HeaderProjectID)
		if projectID == "" {
			abort(c, ErrMissingProjectID)
			return
		}

		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(c, ErrUnauthorized)
			return
		}
		tokenProject, err := tokens.Verify(strings.TrimSpace(token))
		if err != nil || tokenProject != projectID {
			abort(c, ErrUnauthorized)
			return
		}

		c.Set(projectIDKey, projectID)
		c.Next()
	}
}

// ProjectID returns the project authenticated by BearerGuard.
func ProjectID(c *gin.Context) string {
	return c.GetString(projectIDKey)
}
