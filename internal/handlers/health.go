package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"poster-generator-backend/internal/models"
)

// NewHealthHandler godoc
// @Summary     Health check
// @Description Returns the health status of the API. A missing required setting is reported in "error".
// @Tags        health
// @Accept      json
// @Produce     json
// @Success     200 {object} models.HealthResponse
// @Router      /health [get]
func NewHealthHandler(cfgErr error) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := models.HealthResponse{
			Status: "ok",
		}
		if cfgErr != nil {
			response.Status = "configuration_error"
			response.Error = cfgErr.Error()
		}
		c.JSON(http.StatusOK, response)
	}
}
