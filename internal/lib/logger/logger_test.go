package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/linemk/shop-orders/internal/lib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger_Levels(t *testing.T) {
	ctx := context.Background()

	assert.True(t, logger.SetupLogger(logger.EnvLocal).Enabled(ctx, slog.LevelDebug))
	assert.True(t, logger.SetupLogger(logger.EnvDev).Enabled(ctx, slog.LevelDebug))
	assert.False(t, logger.SetupLogger(logger.EnvProd).Enabled(ctx, slog.LevelDebug))
	assert.True(t, logger.SetupLogger(logger.EnvProd).Enabled(ctx, slog.LevelInfo))
	// неизвестное окружение ведет себя как prod
	assert.False(t, logger.SetupLogger("staging").Enabled(ctx, slog.LevelDebug))
}

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.EnvProd, &buf)

	log.Info("order created", slog.String("order_id", "o-1"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order created", entry["msg"])
	assert.Equal(t, "o-1", entry["order_id"])
	assert.Equal(t, logger.EnvProd, entry["env"])
}

func TestNew_DevAddsSource(t *testing.T) {
	var buf bytes.Buffer
	logger.New(logger.EnvDev, &buf).Debug("checking")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry, "source")
}
