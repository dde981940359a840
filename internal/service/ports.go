package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linemk/shop-orders/internal/config"
	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/linemk/shop-orders/internal/lib/metrics"
	"github.com/linemk/shop-orders/internal/notify"
)

// MethodRegistry набор способов оплаты и валюта, в которой каждый принимает деньги
type MethodRegistry interface {
	List() []string
	Validate(name string) error
	SettlementCurrency(name string) (money.Currency, error)
}

type methodRegistry struct {
	names      []string
	currencies map[string]money.Currency
}

// NewMethodRegistry строит реестр из конфигурации. Пустой список допустим:
// тогда любое оформление заказа завершится ErrNoPaymentMethodsConfigured.
func NewMethodRegistry(methods []config.PaymentMethodConfig) (MethodRegistry, error) {
	r := &methodRegistry{currencies: make(map[string]money.Currency, len(methods))}
	for _, m := range methods {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return nil, fmt.Errorf("payment method without name")
		}
		if _, dup := r.currencies[name]; dup {
			return nil, fmt.Errorf("duplicate payment method %q", name)
		}
		currency, err := money.ParseCurrency(m.Currency)
		if err != nil {
			return nil, fmt.Errorf("payment method %q: %w", name, err)
		}
		r.names = append(r.names, name)
		r.currencies[name] = currency
	}
	return r, nil
}

func (r *methodRegistry) List() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *methodRegistry) Validate(name string) error {
	if len(r.names) == 0 {
		return ErrNoPaymentMethodsConfigured
	}
	if _, ok := r.currencies[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedPaymentMethod, name)
	}
	return nil
}

func (r *methodRegistry) SettlementCurrency(name string) (money.Currency, error) {
	if err := r.Validate(name); err != nil {
		return "", err
	}
	return r.currencies[name], nil
}

// Events доставляет уведомления после коммита. Сбой доставки логируется
// и считается в метриках, но не влияет на результат операции.
type Events struct {
	log      *slog.Logger
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

func NewEvents(log *slog.Logger, notifier notify.Notifier, m *metrics.Metrics) *Events {
	return &Events{log: log, notifier: notifier, metrics: m}
}

func (e *Events) notifyBestEffort(ctx context.Context, target models.NotificationTarget, event notify.Event, payload notify.Payload) {
	if e == nil || e.notifier == nil || target.IsEmpty() {
		return
	}
	if err := e.notifier.Notify(ctx, target, event, payload); err != nil {
		e.log.Warn("failed to deliver notification",
			slog.String("event", string(event)),
			slog.String("order_id", payload.OrderID),
			slog.Any("error", err),
		)
		e.metrics.NotificationFailed(string(event))
	}
}

func (e *Events) orderCreated(method string) {
	if e != nil {
		e.metrics.OrderCreated(method)
	}
}

func (e *Events) paymentTransition(status models.PaymentStatus) {
	if e != nil {
		e.metrics.PaymentTransition(string(status))
	}
}
