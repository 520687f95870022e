package server

import (
	"github.com/labstack/echo/v4"

	"github.com/hirelink/intercall/internal/application/config"
	"github.com/hirelink/intercall/internal/infra/ports/http/handlers"
	"github.com/hirelink/intercall/internal/infra/ports/http/middleware"
)

func New(
	cfg *config.Config,
	interviewHandler *handlers.InterviewHandler,
	iceHandler *handlers.IceHandler,
	wsHandler *handlers.WebSocketHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true

	e.Use(middleware.PrometheusMiddleware())

	api := e.Group("/api")
	{
		v1 := api.Group("/v1")
		v1.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
		{
			v1.GET("/ice", iceHandler.IceServers)

			v1.GET("/ws", wsHandler.Handle)

			v1.GET("/interviews/room/:roomId", interviewHandler.GetByRoom)
			v1.PATCH("/interviews/:id/status", interviewHandler.UpdateStatus)
		}
	}

	return e
}
