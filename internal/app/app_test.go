package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/linemk/shop-orders/internal/app/handlers"
	"github.com/linemk/shop-orders/internal/config"
	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/domain/money"
	security "github.com/linemk/shop-orders/internal/jwt-new"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Env:      "local",
		Database: config.DatabaseConfig{Name: "shop"},
		JWT:      config.JWTConfig{Secret: "testsecret", TokenTTL: 60},
		Payments: config.PaymentsConfig{
			Methods:            []config.PaymentMethodConfig{{Name: "bankTransfer", Currency: "EUR"}},
			PaymentTTL:         time.Hour,
			MaxPaymentAttempts: 5,
		},
		Pricing:       config.PricingConfig{Rates: map[string]string{"BTC_EUR": "30000"}, CacheTTL: time.Minute},
		Subscriptions: config.SubscriptionsConfig{ReminderWindow: 72 * time.Hour, Duration: 720 * time.Hour},
		Notifications: config.NotificationsConfig{Driver: "log"},
		Retry:         config.RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 10 * time.Millisecond},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a, err := newWithDB(testLogger(), cfg, db)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, mock
}

func TestNewWithDB_WiresServices(t *testing.T) {
	a, _ := newTestApp(t, testConfig())

	assert.NotNil(t, a.Checkout)
	assert.NotNil(t, a.Orders)
	assert.NotNil(t, a.Payments)
	assert.NotNil(t, a.Renewals)
	assert.NotNil(t, a.Metrics)
}

func TestNewWithDB_ConfigErrors(t *testing.T) {
	cases := map[string]func(cfg *config.Config){
		"unknown driver":   func(cfg *config.Config) { cfg.Notifications.Driver = "smtp" },
		"rabbitmq no url":  func(cfg *config.Config) { cfg.Notifications.Driver = "rabbitmq" },
		"kafka no brokers": func(cfg *config.Config) { cfg.Notifications.Driver = "kafka" },
		"bad static rate":  func(cfg *config.Config) { cfg.Pricing.Rates = map[string]string{"BTC_EUR": "-1"} },
		"duplicate method": func(cfg *config.Config) { cfg.Payments.Methods = append(cfg.Payments.Methods, cfg.Payments.Methods[0]) },
		"bad currency":     func(cfg *config.Config) { cfg.Payments.Methods[0].Currency = "XYZ" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			cfg := testConfig()
			mutate(cfg)
			_, err = newWithDB(testLogger(), cfg, db)
			assert.Error(t, err)
		})
	}
}

func TestNewPriceProvider_StaticFallback(t *testing.T) {
	a, _ := newTestApp(t, testConfig())

	prices, err := a.newPriceProvider()
	require.NoError(t, err)
	rate, err := prices.GetExchangeRate(context.Background(), money.BTC, money.EUR)
	require.NoError(t, err)
	assert.Equal(t, "30000", rate.String())
}

func TestRouter_Health(t *testing.T) {
	a, mock := newTestApp(t, testConfig())
	mock.ExpectPing()

	rr := httptest.NewRecorder()
	a.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_Metrics(t *testing.T) {
	a, _ := newTestApp(t, testConfig())
	router := a.Router()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/webhooks/payments", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "shop_http_requests_total")
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	a, _ := newTestApp(t, testConfig())
	router := a.Router()
	target := "/api/admin/orders/o-1/payments/pay-1/confirm"

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, target, strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// с токеном запрос доходит до обработчика и падает на валидации тела
	token, err := security.NewAdminToken("ops", a.Config.JWT.Secret, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_CheckoutRequiresSession(t *testing.T) {
	a, _ := newTestApp(t, testConfig())

	rr := httptest.NewRecorder()
	a.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{"paymentMethod":"bankTransfer"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{"paymentMethod":"bankTransfer"}`))
	req.Header.Set(handlers.SessionHeader, "")
	rr = httptest.NewRecorder()
	a.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type countingPayments struct {
	calls atomic.Int32
}

func (c *countingPayments) Confirm(context.Context, string, string, money.Money, models.PaymentMethodDetails) error {
	return nil
}
func (c *countingPayments) Fail(context.Context, string, string, string) error { return nil }
func (c *countingPayments) StartPayment(context.Context, string, string) (string, error) {
	return "", nil
}
func (c *countingPayments) ExpireStale(context.Context, time.Time) (int, error) {
	c.calls.Add(1)
	return 1, nil
}

func TestRunSweeper(t *testing.T) {
	payments := &countingPayments{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunSweeper(ctx, testLogger(), payments, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return payments.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
