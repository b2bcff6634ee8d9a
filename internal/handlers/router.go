package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"poster-generator-backend/internal/config"
	"poster-generator-backend/internal/middleware"
	"poster-generator-backend/internal/session"
	"poster-generator-backend/internal/workflow"
)

type RouterDeps struct {
	Config   *config.Config
	Log      zerolog.Logger
	Gate     *session.Gate
	Registry *workflow.Registry
	// ConfigErr, when set, puts every route but /health behind a 503.
	ConfigErr error
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(deps.Log))
	router.Use(gin.Recovery())

	// Health check (no auth)
	router.GET("/health", NewHealthHandler(deps.ConfigErr))

	if deps.ConfigErr != nil {
		router.NoRoute(middleware.ConfigurationGate(deps.ConfigErr))
		return router
	}

	authHandler := NewAuthHandler(deps.Gate)
	workspaceHandler := NewWorkspaceHandler(deps.Registry, deps.Config.MaxUploadBytes, deps.Log)

	// Auth (no token yet)
	public := router.Group("/api/v1/auth")
	public.POST("/register", authHandler.Register)
	public.POST("/login", authHandler.Login)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(deps.Config, deps.Gate))

	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/session", authHandler.Session)

	// Workspace
	api.GET("/workspace", workspaceHandler.Get)
	api.POST("/workspace/image", workspaceHandler.UploadImage)
	api.PUT("/workspace/prompt", workspaceHandler.SetPrompt)
	api.POST("/workspace/reset", workspaceHandler.Reset)
	api.POST("/workspace/generate", workspaceHandler.Generate)

	// History
	api.GET("/history", workspaceHandler.History)
	api.POST("/history/:id/select", workspaceHandler.SelectHistory)
	api.DELETE("/history/:id", workspaceHandler.DeleteHistory)

	return router
}
