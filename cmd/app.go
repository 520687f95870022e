package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/hirelink/intercall/internal/application/config"
	"github.com/hirelink/intercall/internal/application/constant"
	"github.com/hirelink/intercall/internal/application/metric"
	"github.com/hirelink/intercall/internal/infra/adapters/memory"
	"github.com/hirelink/intercall/internal/infra/adapters/postgres"
	"github.com/hirelink/intercall/internal/infra/adapters/postgres/repository"
	"github.com/hirelink/intercall/internal/infra/ports/http/handlers"
	"github.com/hirelink/intercall/internal/infra/ports/http/server"
	"github.com/hirelink/intercall/internal/infra/ports/turn"
	"github.com/hirelink/intercall/internal/relay"
	"github.com/hirelink/intercall/internal/usecase"
)

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: logLevel},
			),
		),
	)

	dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
	if err != nil {
		slog.Error("connect to postgres", slog.Any(constant.Error, err))
		os.Exit(1)
	}
	defer dbConn.Close()

	interviewRepo := repository.NewInterviewRepo(dbConn)
	connRepo := memory.NewConnectionRepository()
	registry := relay.NewRegistry()

	interviewUsecase := usecase.NewInterviewUsecase(interviewRepo)
	relayUsecase := usecase.NewRelayUsecase(registry, connRepo)

	interviewHandler := handlers.NewInterviewHandler(interviewUsecase)
	iceHandler := handlers.NewIceHandler(cfg)
	wsHandler := handlers.NewWebSocketHandler(cfg, relayUsecase, connRepo)

	echoSrv := server.New(cfg, interviewHandler, iceHandler, wsHandler)

	metricsSrv := metric.NewServer()

	if cfg.Turn.Enabled {
		turnSrv, err := turn.Start(&cfg.Turn)
		if err != nil {
			slog.Error("start turn server", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer turnSrv.Close()
	}

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	go func() {
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricsPort)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down servers due to context cancel")
	case err := <-echoSrvCh:
		slog.Error(
			"HTTP server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	case err := <-metricsSrvCh:
		slog.Error(
			"Metrics server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown metric server", slog.Any(constant.Error, err))
	}
}
