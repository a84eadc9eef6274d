package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reelforge/reelforge/pkg/types"
)

// writeError maps the error taxonomy onto HTTP status codes. Anything outside
// the taxonomy is a 500.
func writeError(c *gin.Context, err error) {
	switch {
	case types.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case types.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case types.IsStateConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case types.IsUpstream(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// userIDFrom resolves the acting user for billing attribution. Auth is
// terminated upstream; the gateway forwards the identity in X-User-ID.
func userIDFrom(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return "anonymous"
}
