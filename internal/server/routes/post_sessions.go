package routes

import (
	"net/http"

	"github.com/sentinelhealth/fraudmap/internal/server/middleware"
	"github.com/sentinelhealth/fraudmap/internal/view"
	"github.com/sentinelhealth/fraudmap/pkg/graph"

	"github.com/labstack/echo/v4"
)

// CreateSessionHandler opens a graph view session. The source is either
// given explicitly or inferred: an inline snapshot mounts statically, a
// provider id opens a referral-network view, otherwise the aggregate
// fraud-ring view is opened.
func CreateSessionHandler(c echo.Context) error {
	type createSessionBody struct {
		Source     string          `json:"source" validate:"omitempty,oneof=static provider rings cdpap"`
		ProviderID string          `json:"provider_id"`
		Depth      int             `json:"depth" validate:"omitempty,min=1,max=4"`
		MinScore   float64         `json:"min_score" validate:"omitempty,min=0,max=100"`
		Limit      int             `json:"limit" validate:"omitempty,min=1"`
		Snapshot   *graph.Snapshot `json:"snapshot"`
	}

	type createSessionResponse struct {
		Message string      `json:"message"`
		Session *view.State `json:"session,omitempty"`
	}

	data := new(createSessionBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createSessionResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createSessionResponse{
			Message: "Invalid request body",
		})
	}

	source := view.Source(data.Source)
	if source == "" {
		switch {
		case data.Snapshot != nil:
			source = view.SourceStatic
		case data.ProviderID != "":
			source = view.SourceProvider
		default:
			source = view.SourceRings
		}
	}
	if source == view.SourceProvider && data.ProviderID == "" {
		return c.JSON(http.StatusBadRequest, createSessionResponse{
			Message: "provider_id is required for provider sessions",
		})
	}
	if source == view.SourceStatic && data.Snapshot == nil {
		return c.JSON(http.StatusBadRequest, createSessionResponse{
			Message: "snapshot is required for static sessions",
		})
	}

	app := c.(*middleware.AppContext).App
	session := app.Sessions.Open(view.NewSessionParams{
		Client:     app.Client,
		Source:     source,
		Snapshot:   data.Snapshot,
		ProviderID: data.ProviderID,
		Depth:      data.Depth,
		MinScore:   data.MinScore,
		Limit:      data.Limit,
		Width:      app.FrameWidth,
		Height:     app.FrameHeight,
	})

	state := session.State()
	return c.JSON(http.StatusOK, createSessionResponse{
		Message: "Session opened",
		Session: &state,
	})
}
