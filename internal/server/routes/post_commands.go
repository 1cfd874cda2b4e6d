package routes

import (
	"net/http"

	"github.com/sentinelhealth/fraudmap/internal/server/middleware"
	"github.com/sentinelhealth/fraudmap/internal/view"

	"github.com/labstack/echo/v4"
)

// PostCommandHandler applies one interaction command to a session and
// returns the updated state.
func PostCommandHandler(c echo.Context) error {
	type postCommandBody struct {
		ID     string  `param:"id" validate:"required"`
		Type   string  `json:"type" validate:"required"`
		NodeID string  `json:"node_id"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Depth  int     `json:"depth"`
	}

	type postCommandResponse struct {
		Message string      `json:"message"`
		Session *view.State `json:"session,omitempty"`
	}

	data := new(postCommandBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, postCommandResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, postCommandResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	session, ok := app.Sessions.Get(data.ID)
	if !ok {
		return c.JSON(http.StatusNotFound, postCommandResponse{
			Message: "Session not found",
		})
	}

	err := session.Apply(view.Command{
		Type:   data.Type,
		NodeID: data.NodeID,
		X:      data.X,
		Y:      data.Y,
		Depth:  data.Depth,
	})
	if err != nil {
		return c.JSON(http.StatusBadRequest, postCommandResponse{
			Message: err.Error(),
		})
	}

	state := session.State()
	return c.JSON(http.StatusOK, postCommandResponse{
		Message: "OK",
		Session: &state,
	})
}
