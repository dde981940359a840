package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/linemk/shop-orders/internal/app"
	"github.com/linemk/shop-orders/internal/config"
	"github.com/linemk/shop-orders/internal/lib/logger"
	"github.com/pkg/errors"
)

// sweeper просрочивает pending-платежи с истекшим expires_at
func main() {
	cfg := config.MustLoad()

	log := logger.SetupLogger(cfg.Env)
	log.Info("starting sweeper", slog.String("env", cfg.Env))

	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("failed to release resources", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.RunSweeper(ctx, log, application.Payments, cfg.Payments.SweepInterval)
}
