package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/linemk/shop-orders/internal/config"
	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	tmpFile, err := os.CreateTemp("", "config_test_*.yaml")
	assert.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	_, err = tmpFile.WriteString(content)
	assert.NoError(t, err)
	assert.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

func TestMustLoadByPath_Success(t *testing.T) {
	// Устанавливаем обязательные переменные окружения
	t.Setenv("DB_PASSWORD", "mypassword")
	t.Setenv("JWT_SECRET", "mysecret")
	t.Setenv("WEBHOOK_SECRET_HASH", "$2a$10$hash")

	content := `
env: "local"
http_server:
  address: "localhost:8080"
  timeout: "4s"
  idle_timeout: "60s"
database:
  host: "localhost"
  port: 5432
  user: "postgres"
  name: "shop"
jwt:
  token_ttl: 60
migrations:
  path: "./migrations"
payments:
  methods:
    - name: bankTransfer
      currency: EUR
    - name: bitcoin
      currency: BTC
  payment_ttl: "2h"
  max_payment_attempts: 3
  sweep_interval: "30s"
pricing:
  rates:
    BTC_EUR: "30000"
  cache_ttl: "10s"
subscriptions:
  reminder_window: "72h"
  duration: "720h"
  enforce_renewal_window: true
notifications:
  driver: "rabbitmq"
  exchange: "notif"
`
	cfg := config.MustLoadByPath(writeConfig(t, content))

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Address)
	assert.Equal(t, 4*time.Second, cfg.HTTPServer.Timeout)
	assert.Equal(t, 60*time.Second, cfg.HTTPServer.IdleTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "mypassword", cfg.Database.Password)
	assert.Equal(t, "shop", cfg.Database.Name)
	assert.Equal(t, 60, cfg.JWT.TokenTTL)
	assert.Equal(t, "./migrations", cfg.Migrations.Path)

	assert.Len(t, cfg.Payments.Methods, 2)
	assert.Equal(t, "bankTransfer", cfg.Payments.Methods[0].Name)
	assert.Equal(t, "BTC", cfg.Payments.Methods[1].Currency)
	assert.Equal(t, 2*time.Hour, cfg.Payments.PaymentTTL)
	assert.Equal(t, 3, cfg.Payments.MaxPaymentAttempts)
	assert.Equal(t, 30*time.Second, cfg.Payments.SweepInterval)
	assert.Equal(t, "30000", cfg.Pricing.Rates["BTC_EUR"])
	assert.Equal(t, 10*time.Second, cfg.Pricing.CacheTTL)
	assert.Equal(t, 72*time.Hour, cfg.Subscriptions.ReminderWindow)
	assert.True(t, cfg.Subscriptions.EnforceRenewalWindow)
	assert.Equal(t, "rabbitmq", cfg.Notifications.Driver)
	assert.Equal(t, "notif", cfg.Notifications.Exchange)
	assert.Equal(t, "$2a$10$hash", cfg.Webhook.SecretHash)
}

func TestMustLoadByPath_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "mypassword")
	t.Setenv("JWT_SECRET", "mysecret")

	content := `
database:
  user: "postgres"
  name: "shop"
`
	cfg := config.MustLoadByPath(writeConfig(t, content))

	assert.Equal(t, "development", cfg.Env)
	assert.Empty(t, cfg.Payments.Methods)
	assert.Equal(t, 24*time.Hour, cfg.Payments.PaymentTTL)
	assert.Equal(t, 5, cfg.Payments.MaxPaymentAttempts)
	assert.Equal(t, time.Minute, cfg.Payments.SweepInterval)
	assert.Equal(t, 720*time.Hour, cfg.Subscriptions.Duration)
	assert.False(t, cfg.Subscriptions.EnforceRenewalWindow)
	assert.Equal(t, "log", cfg.Notifications.Driver)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.InitialInterval)
}

func TestMustLoadByPath_FileNotFound(t *testing.T) {
	// Ожидаем панику, если файла не существует
	assert.Panics(t, func() {
		config.MustLoadByPath("non_existent_config.yaml")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	db := config.DatabaseConfig{Host: "db", Port: 5433, User: "shop", Password: "p@ss/word", Name: "orders"}
	assert.Equal(t, "postgres://shop:p%40ss%2Fword@db:5433/orders?sslmode=disable", db.DSN())
}
