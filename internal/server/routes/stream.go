package routes

import (
	"bytes"
	"net/http"
	"time"

	"github.com/sentinelhealth/fraudmap/internal/server/middleware"
	"github.com/sentinelhealth/fraudmap/pkg/logger"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"
)

// streamInterval paces frame pushes a little below the layout tick rate;
// faster adds no visible smoothness over SVG.
const streamInterval = 50 * time.Millisecond

// StreamFramesHandler pushes rendered SVG frames over a websocket until
// the client disconnects or the session closes.
func StreamFramesHandler(c echo.Context) error {
	type streamParams struct {
		ID string `param:"id" validate:"required"`
	}

	params := new(streamParams)
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

	handler := websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()

		ticker := time.NewTicker(streamInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.Request().Context().Done():
				return
			case <-ticker.C:
				if session.Closed() {
					return
				}
				var buf bytes.Buffer
				if _, err := session.RenderFrame(&buf, "svg"); err != nil {
					logger.Error("Failed to render frame", "session", params.ID, "err", err)
					return
				}
				if err := websocket.Message.Send(conn, buf.String()); err != nil {
					return
				}
			}
		}
	})
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
