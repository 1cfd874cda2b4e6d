// Package server exposes the graph view sessions over HTTP.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "github.com/sentinelhealth/fraudmap/internal/server/middleware"
	"github.com/sentinelhealth/fraudmap/internal/upstream"
	"github.com/sentinelhealth/fraudmap/internal/util"
	"github.com/sentinelhealth/fraudmap/internal/view"
	"github.com/sentinelhealth/fraudmap/pkg/logger"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := upstream.NewClient(upstream.NewClientParams{
		BaseURL:               util.GetEnv("ANALYTICS_URL"),
		RequestTimeout:        time.Duration(util.GetEnvInt("ANALYTICS_TIMEOUT_SEC", 15)) * time.Second,
		MaxConcurrentRequests: int64(util.GetEnvInt("ANALYTICS_PARALLEL_REQ", 8)),
		MaxRetries:            util.GetEnvInt("ANALYTICS_MAX_RETRIES", 3),
	})
	if err != nil {
		logger.Fatal("Failed to create analytics client", "err", err)
	}

	sessions := view.NewRegistry(
		time.Duration(util.GetEnvInt("SESSION_TTL_SEC", 900))*time.Second,
		time.Duration(util.GetEnvInt("SESSION_SWEEP_SEC", 60))*time.Second,
	)
	defer sessions.CloseAll()

	app := &mid.App{
		Client:      client,
		Sessions:    sessions,
		FrameWidth:  util.GetEnvInt("FRAME_WIDTH", 960),
		FrameHeight: util.GetEnvInt("FRAME_HEIGHT", 600),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
