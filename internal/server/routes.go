package server

import (
	"github.com/sentinelhealth/fraudmap/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Session lifecycle
	apiRoutes.POST("/sessions", routes.CreateSessionHandler)
	apiRoutes.GET("/sessions/:id", routes.GetSessionHandler)
	apiRoutes.DELETE("/sessions/:id", routes.DeleteSessionHandler)

	// Frames and positions
	apiRoutes.GET("/sessions/:id/frame", routes.GetFrameHandler)
	apiRoutes.GET("/sessions/:id/positions", routes.GetPositionsHandler)
	apiRoutes.GET("/sessions/:id/stream", routes.StreamFramesHandler)

	// Interaction
	apiRoutes.POST("/sessions/:id/commands", routes.PostCommandHandler)
}
