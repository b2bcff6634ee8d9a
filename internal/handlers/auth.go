package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"poster-generator-backend/internal/middleware"
	"poster-generator-backend/internal/models"
	"poster-generator-backend/internal/session"
)

type AuthHandler struct {
	gate *session.Gate
}

func NewAuthHandler(gate *session.Gate) *AuthHandler {
	return &AuthHandler{gate: gate}
}

// Register godoc
// @Summary     Register a new account
// @Description Creates an unconfirmed account. The user must follow the emailed verification link before logging in.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body models.CredentialsRequest true "Email and password"
// @Success     200 {object} models.RegistrationResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	reg, err := h.gate.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "registration failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.RegistrationResponse{
		Status:  "verification_pending",
		Email:   reg.User.Email,
		Message: reg.Message,
	})
}

// Login godoc
// @Summary     Log in
// @Description Exchanges email and password for a Supabase session.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body models.CredentialsRequest true "Email and password"
// @Success     200 {object} models.SessionResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	sess, err := h.gate.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, session.ErrCredentialsRequired):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "validation failed", Message: err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "login failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.SessionResponse{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
		User:         models.UserResponse{ID: sess.User.ID, Email: sess.User.Email},
	})
}

// Logout godoc
// @Summary     Log out
// @Description Ends the Supabase session and discards the caller's workspace.
// @Tags        auth
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.HealthResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.gate.Logout(c.Request.Context(), middleware.AccessToken(c), user); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "logout failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.HealthResponse{Status: "signed_out"})
}

// Session godoc
// @Summary     Current user
// @Tags        auth
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.UserResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	user := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, models.UserResponse{ID: user.ID, Email: user.Email})
}
