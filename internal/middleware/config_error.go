package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"poster-generator-backend/internal/models"
)

// ConfigurationGate answers every request with 503 and the configuration
// message. The server runs behind it when required settings are missing.
func ConfigurationGate(cfgErr error) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "configuration error",
			Message: cfgErr.Error(),
		})
	}
}
