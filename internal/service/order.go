package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/linemk/shop-orders/internal/notify"
	"github.com/linemk/shop-orders/internal/pricing"
	"github.com/linemk/shop-orders/internal/storage"
	"github.com/samber/mo"
)

// CreateOrderOptions необязательные параметры заказа
type CreateOrderOptions struct {
	SessionID       string
	ShippingAddress mo.Option[models.ShippingAddress]
	Notifications   models.Notifications
	// CoCommit выполняются в той же транзакции, что и вставка заказа.
	// Сбой любого эффекта откатывает заказ целиком.
	CoCommit []storage.TxEffect
}

type OrderFactory interface {
	CreateOrder(ctx context.Context, items []models.OrderItem, method string, opts CreateOrderOptions) (string, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

type orderFactory struct {
	log        *slog.Logger
	tx         storage.Transactor
	orders     storage.OrderStorage
	payments   storage.PaymentStorage
	methods    MethodRegistry
	prices     pricing.Provider
	events     *Events
	paymentTTL time.Duration
}

func NewOrderFactory(
	log *slog.Logger,
	tx storage.Transactor,
	orders storage.OrderStorage,
	payments storage.PaymentStorage,
	methods MethodRegistry,
	prices pricing.Provider,
	events *Events,
	paymentTTL time.Duration,
) OrderFactory {
	return &orderFactory{
		log:        log,
		tx:         tx,
		orders:     orders,
		payments:   payments,
		methods:    methods,
		prices:     prices,
		events:     events,
		paymentTTL: paymentTTL,
	}
}

// CreateOrder проверяет позиции, считает цену в валюте способа оплаты и
// атомарно записывает заказ, первый pending-платеж и эффекты opts.CoCommit.
func (f *orderFactory) CreateOrder(ctx context.Context, items []models.OrderItem, method string, opts CreateOrderOptions) (string, error) {
	const op = "service.OrderFactory.CreateOrder"
	logger := f.log.With(slog.String("op", op), slog.String("method", method))

	if len(f.methods.List()) == 0 {
		logger.Error("no payment methods configured")
		return "", fmt.Errorf("%s: %w", op, ErrNoPaymentMethodsConfigured)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyCart)
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return "", fmt.Errorf("%s: product %s: %w", op, item.Product.ID, ErrInvalidQuantity)
		}
	}
	currency, err := f.methods.SettlementCurrency(method)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	shipping := opts.ShippingAddress
	if models.IsDigital(items) {
		// адрес цифровому заказу не нужен и не хранится
		shipping = mo.None[models.ShippingAddress]()
	} else if shipping.IsAbsent() {
		return "", fmt.Errorf("%s: %w", op, ErrShippingRequired)
	}

	price, err := totalPrice(ctx, f.prices, items, currency)
	if err != nil {
		logger.Error("failed to compute price", slog.Any("error", err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:              uuid.NewString(),
		SessionID:       opts.SessionID,
		Items:           items,
		ShippingAddress: shipping,
		Notifications:   opts.Notifications,
		CreatedAt:       now,
	}
	payment := &models.Payment{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		Method:    method,
		Status:    models.PaymentStatusPending,
		Price:     price,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(f.paymentTTL),
	}

	err = f.tx.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := f.orders.CreateOrder(ctx, tx, order); err != nil {
			return err
		}
		if err := f.payments.InsertPayment(ctx, tx, payment); err != nil {
			return err
		}
		return storage.ApplyEffects(ctx, tx, opts.CoCommit)
	})
	if err != nil {
		logger.Error("failed to create order", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	logger.Info("order created", slog.String("order_id", order.ID), slog.String("price", price.String()))
	f.events.orderCreated(method)
	f.events.notifyBestEffort(ctx, order.Notifications.PaymentStatus, notify.EventOrderCreated, notify.Payload{
		OrderID:   order.ID,
		PaymentID: payment.ID,
		Method:    method,
		Status:    payment.Status,
		Price:     &price,
	})

	return order.ID, nil
}

func (f *orderFactory) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	const op = "service.OrderFactory.GetOrder"

	order, err := f.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

// totalPrice сумма price × quantity по позициям, каждая позиция
// пересчитывается в валюту оплаты только если валюты различаются.
func totalPrice(ctx context.Context, prices pricing.Provider, items []models.OrderItem, currency money.Currency) (money.Money, error) {
	total := money.Zero(currency)
	for _, item := range items {
		line := item.Product.Price.Mul(item.Quantity)
		if line.Currency != currency {
			rate, err := prices.GetExchangeRate(ctx, line.Currency, currency)
			if err != nil {
				return money.Money{}, fmt.Errorf("rate %s/%s: %w", line.Currency, currency, err)
			}
			line, err = line.Convert(currency, rate)
			if err != nil {
				return money.Money{}, err
			}
		}
		var err error
		total, err = total.Add(line)
		if err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}
