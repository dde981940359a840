package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/linemk/shop-orders/internal/config"
	"github.com/linemk/shop-orders/internal/lib/metrics"
	"github.com/linemk/shop-orders/internal/notify"
	"github.com/linemk/shop-orders/internal/pricing"
	"github.com/linemk/shop-orders/internal/service"
	"github.com/linemk/shop-orders/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *sql.DB
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Checkout service.CheckoutService
	Orders   service.OrderFactory
	Payments service.PaymentService
	Renewals service.RenewalService

	closers []func() error
}

// NewApp создаёт новый экземпляр App: подключение к БД, источники курсов,
// доставку уведомлений и сервисы.
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	app, err := newWithDB(log, cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	app.closers = append(app.closers, db.Close)
	return app, nil
}

// newWithDB собирает приложение поверх уже открытого подключения
func newWithDB(log *slog.Logger, cfg *config.Config, db *sql.DB) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Registry: prometheus.NewRegistry(),
	}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewDBStatsCollector(db, cfg.Database.Name))
	app.Metrics = metrics.New(app.Registry)

	methods, err := service.NewMethodRegistry(cfg.Payments.Methods)
	if err != nil {
		return nil, fmt.Errorf("invalid payment methods: %w", err)
	}
	if len(methods.List()) == 0 {
		log.Warn("no payment methods configured, checkout is disabled")
	}

	prices, err := app.newPriceProvider()
	if err != nil {
		app.Close()
		return nil, err
	}

	notifier, err := app.newNotifier()
	if err != nil {
		app.Close()
		return nil, err
	}

	tx := storage.NewTxRunner(log, db, storage.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	})
	products := storage.NewProductRepository(db)
	carts := storage.NewCartRepository(db)
	orders := storage.NewOrderRepository(db)
	payments := storage.NewPaymentRepository(db)
	subs := storage.NewSubscriptionRepository(db)

	events := service.NewEvents(log, notifier, app.Metrics)
	app.Orders = service.NewOrderFactory(log, tx, orders, payments, methods, prices, events, cfg.Payments.PaymentTTL)
	app.Checkout = service.NewCheckoutService(log, service.NewCartResolver(log, carts, products), carts, app.Orders)
	app.Payments = service.NewPaymentService(log, tx, orders, payments, methods, prices,
		service.NewSubscriptionExtender(log, subs, cfg.Subscriptions.Duration),
		events,
		service.PaymentPolicy{
			PaymentTTL:  cfg.Payments.PaymentTTL,
			MaxAttempts: cfg.Payments.MaxPaymentAttempts,
		},
	)
	app.Renewals = service.NewRenewalService(log, subs, products, orders, app.Orders, service.RenewalPolicy{
		ReminderWindow: cfg.Subscriptions.ReminderWindow,
		EnforceWindow:  cfg.Subscriptions.EnforceRenewalWindow,
	})

	return app, nil
}

// newPriceProvider: redis (если задан адрес) опрашивается первым, статические курсы из конфига служат запасным источником
func (a *App) newPriceProvider() (pricing.Provider, error) {
	var sources []pricing.Provider

	if addr := a.Config.Pricing.RedisAddr; addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		a.closers = append(a.closers, client.Close)
		sources = append(sources, pricing.NewRedisSource(client))
	}

	if len(a.Config.Pricing.Rates) > 0 {
		static, err := pricing.NewStaticSource(a.Config.Pricing.Rates)
		if err != nil {
			return nil, fmt.Errorf("invalid static rates: %w", err)
		}
		sources = append(sources, static)
	}

	if len(sources) == 0 {
		a.Logger.Warn("no exchange rate sources configured, only same-currency orders are possible")
	}
	return pricing.NewCachedProvider(a.Logger, a.Config.Pricing.CacheTTL, sources...), nil
}

func (a *App) newNotifier() (notify.Notifier, error) {
	cfg := a.Config.Notifications

	switch cfg.Driver {
	case "", "log":
		return notify.NewLogNotifier(a.Logger), nil
	case "rabbitmq":
		if cfg.RabbitMQURL == "" {
			return nil, errors.New("RABBITMQ_URL is required for rabbitmq notifications")
		}
		conn, ch, err := notify.SetupRabbitMQ(a.Logger, cfg.RabbitMQURL, cfg.Exchange)
		if err != nil {
			return nil, fmt.Errorf("failed to setup rabbitmq: %w", err)
		}
		a.closers = append(a.closers, conn.Close, ch.Close)
		return notify.NewRabbitMQNotifier(ch, cfg.Exchange), nil
	case "kafka":
		writer, err := notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("failed to setup kafka: %w", err)
		}
		a.closers = append(a.closers, writer.Close)
		return notify.NewKafkaNotifier(writer), nil
	default:
		return nil, fmt.Errorf("unknown notifications driver %q", cfg.Driver)
	}
}

// Close освобождает ресурсы в обратном порядке открытия
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
