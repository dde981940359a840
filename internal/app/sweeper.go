package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/linemk/shop-orders/internal/service"
)

// RunSweeper периодически просрочивает pending-платежи, пока ctx не отменен
func RunSweeper(ctx context.Context, log *slog.Logger, payments service.PaymentService, interval time.Duration) {
	const op = "app.RunSweeper"
	logger := log.With(slog.String("op", op))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("sweeper started", slog.String("interval", interval.String()))
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopped")
			return
		case now := <-ticker.C:
			expired, err := payments.ExpireStale(ctx, now.UTC())
			if err != nil {
				logger.Error("failed to expire stale payments", slog.Any("error", err))
				continue
			}
			if expired > 0 {
				logger.Info("stale payments expired", slog.Int("count", expired))
			}
		}
	}
}
