package routes

import (
	"net/http"

	"github.com/sentinelhealth/fraudmap/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// DeleteSessionHandler closes a session and stops its simulation.
func DeleteSessionHandler(c echo.Context) error {
	type deleteSessionParams struct {
		ID string `param:"id" validate:"required"`
	}

	params := new(deleteSessionParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	if !app.Sessions.Remove(params.ID) {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Session not found"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Session closed"})
}
