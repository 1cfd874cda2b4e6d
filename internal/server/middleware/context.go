package middleware

import (
	"github.com/sentinelhealth/fraudmap/internal/upstream"
	"github.com/sentinelhealth/fraudmap/internal/view"

	"github.com/labstack/echo/v4"
)

// App carries the server-wide dependencies handlers pull from the
// request context.
type App struct {
	Client   *upstream.Client
	Sessions *view.Registry

	FrameWidth  int
	FrameHeight int
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{
				Context: c,
				App:     app,
			})
		}
	}
}
