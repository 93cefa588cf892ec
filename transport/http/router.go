package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pharos-rwa/pharos/core"
	"github.com/pharos-rwa/pharos/gateway"
	"github.com/pharos-rwa/pharos/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, gw *gateway.Gateway) *gin.Engine {
	router := gin.Default()

	// Create handlers
	handlers := NewAuthHandlers(authService)
	contract := NewContractHandlers(gw)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/challenge", handlers.Challenge)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)

		api.POST("/contract/read", contract.Read)
		api.GET("/contract/calls/:key", contract.Status)

		// Writes spend gas from the service account, so they are
		// restricted to creditor and admin sessions.
		write := api.Group("")
		write.Use(RequireRole(core.RoleCreditor, core.RoleAdmin))
		{
			write.POST("/contract/write", contract.Write)
		}
	}

	return router
}
