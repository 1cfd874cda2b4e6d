package routes

import (
	"bytes"
	"net/http"

	"github.com/sentinelhealth/fraudmap/internal/server/middleware"
	"github.com/sentinelhealth/fraudmap/internal/view"
	"github.com/sentinelhealth/fraudmap/pkg/layout"
	"github.com/sentinelhealth/fraudmap/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetSessionHandler returns the session summary: loading/error state,
// graph stats, viewport and the current selection.
func GetSessionHandler(c echo.Context) error {
	type getSessionParams struct {
		ID string `param:"id" validate:"required"`
	}

	type getSessionResponse struct {
		Message string      `json:"message"`
		Session *view.State `json:"session,omitempty"`
	}

	params := new(getSessionParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getSessionResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getSessionResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	session, ok := app.Sessions.Get(params.ID)
	if !ok {
		return c.JSON(http.StatusNotFound, getSessionResponse{
			Message: "Session not found",
		})
	}

	state := session.State()
	return c.JSON(http.StatusOK, getSessionResponse{
		Message: "OK",
		Session: &state,
	})
}

// GetFrameHandler renders the session's current frame. SVG by default;
// `format=png` or a large node count switches to the raster surface.
func GetFrameHandler(c echo.Context) error {
	type getFrameParams struct {
		ID     string `param:"id" validate:"required"`
		Format string `query:"format" validate:"omitempty,oneof=svg png"`
	}

	params := new(getFrameParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	session, ok := app.Sessions.Get(params.ID)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Session not found"})
	}

	var buf bytes.Buffer
	contentType, err := session.RenderFrame(&buf, params.Format)
	if err != nil {
		logger.Error("Failed to render frame", "session", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}

// GetPositionsHandler returns the layout engine's current positions.
func GetPositionsHandler(c echo.Context) error {
	type getPositionsParams struct {
		ID string `param:"id" validate:"required"`
	}

	type getPositionsResponse struct {
		Message   string                     `json:"message"`
		Positions map[string]layout.Position `json:"positions,omitempty"`
	}

	params := new(getPositionsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getPositionsResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getPositionsResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	session, ok := app.Sessions.Get(params.ID)
	if !ok {
		return c.JSON(http.StatusNotFound, getPositionsResponse{
			Message: "Session not found",
		})
	}

	return c.JSON(http.StatusOK, getPositionsResponse{
		Message:   "OK",
		Positions: session.Positions(),
	})
}
