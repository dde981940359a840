package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/storage"
)

// SubscriptionView подписка с товаром и признаком возможности продления
type SubscriptionView struct {
	Subscription models.Subscription
	Product      *models.Product
	CanRenew     bool
}

type RenewalService interface {
	CanRenew(sub *models.Subscription, now time.Time) bool
	Renew(ctx context.Context, subscriptionID, sessionID string) (string, error)
	GetSubscription(ctx context.Context, id string) (*SubscriptionView, error)
}

// RenewalPolicy настройки продления
type RenewalPolicy struct {
	ReminderWindow time.Duration
	// EnforceWindow запрещает продление раньше окна напоминания
	EnforceWindow bool
}

type renewalService struct {
	log     *slog.Logger
	subs    storage.SubscriptionStorage
	catalog storage.CatalogStorage
	orders  storage.OrderStorage
	factory OrderFactory
	policy  RenewalPolicy
}

func NewRenewalService(
	log *slog.Logger,
	subs storage.SubscriptionStorage,
	catalog storage.CatalogStorage,
	orders storage.OrderStorage,
	factory OrderFactory,
	policy RenewalPolicy,
) RenewalService {
	return &renewalService{
		log:     log,
		subs:    subs,
		catalog: catalog,
		orders:  orders,
		factory: factory,
		policy:  policy,
	}
}

// CanRenew: до окончания подписки осталось не больше окна напоминания
func (s *renewalService) CanRenew(sub *models.Subscription, now time.Time) bool {
	return !now.Before(sub.PaidUntil.Add(-s.policy.ReminderWindow))
}

// Renew создает новый заказ на товар подписки, повторяя способ оплаты,
// адрес и уведомления последнего оплаченного заказа. Корзина не участвует.
func (s *renewalService) Renew(ctx context.Context, subscriptionID, sessionID string) (string, error) {
	const op = "service.RenewalService.Renew"
	logger := s.log.With(slog.String("op", op), slog.String("subscription_id", subscriptionID))

	sub, err := s.subs.GetSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		if !errors.Is(err, storage.ErrSubscriptionNotFound) {
			logger.Error("failed to get subscription", slog.Any("error", err))
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	product, err := s.catalog.GetProductByID(ctx, sub.ProductID)
	if err != nil {
		// подписка на несуществующий товар: нарушение целостности
		logger.Error("failed to get subscription product", slog.String("product_id", sub.ProductID), slog.Any("error", err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	identity := sub.Identity()
	if identity.IsEmpty() {
		return "", fmt.Errorf("%s: %w", op, ErrNoIdentityChannel)
	}

	if s.policy.EnforceWindow && !s.CanRenew(sub, time.Now()) {
		return "", fmt.Errorf("%s: paid until %s: %w", op, sub.PaidUntil.Format(time.RFC3339), ErrRenewalNotAllowedYet)
	}

	last, err := s.orders.FindLatestPaidOrder(ctx, product.ID, identity)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrNoPaidOrderFound)
		}
		logger.Error("failed to find paid order", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to find paid order: %w", op, err)
	}
	paid, ok := last.PaidPayment()
	if !ok {
		return "", fmt.Errorf("%s: %w", op, ErrNoPaidOrderFound)
	}

	// заказ привязывается к сессии продлевающего, без неё к сессии прошлого заказа
	if sessionID == "" {
		sessionID = last.SessionID
	}

	items := []models.OrderItem{{Product: product.Snapshot(), Quantity: 1}}
	orderID, err := s.factory.CreateOrder(ctx, items, paid.Method, CreateOrderOptions{
		SessionID:       sessionID,
		ShippingAddress: last.ShippingAddress,
		Notifications:   last.Notifications,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("renewal order created", slog.String("order_id", orderID), slog.String("previous_order_id", last.ID))
	return orderID, nil
}

func (s *renewalService) GetSubscription(ctx context.Context, id string) (*SubscriptionView, error) {
	const op = "service.RenewalService.GetSubscription"

	sub, err := s.subs.GetSubscriptionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	product, err := s.catalog.GetProductByID(ctx, sub.ProductID)
	if err != nil {
		s.log.Error("failed to get subscription product", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &SubscriptionView{
		Subscription: *sub,
		Product:      product,
		CanRenew:     s.CanRenew(sub, time.Now()),
	}, nil
}

// SubscriptionExtender продлевает подписку внутри транзакции подтверждения оплаты
type SubscriptionExtender interface {
	ExtendTx(ctx context.Context, tx *sql.Tx, productID string, identity models.NotificationTarget, now time.Time) error
}

type subscriptionExtender struct {
	log      *slog.Logger
	subs     storage.SubscriptionStorage
	duration time.Duration
}

func NewSubscriptionExtender(log *slog.Logger, subs storage.SubscriptionStorage, duration time.Duration) SubscriptionExtender {
	return &subscriptionExtender{log: log, subs: subs, duration: duration}
}

// ExtendTx: найденная подписка продлевается от max(paid_until, now),
// иначе создается новая с paid_until = now + duration.
func (e *subscriptionExtender) ExtendTx(ctx context.Context, tx *sql.Tx, productID string, identity models.NotificationTarget, now time.Time) error {
	const op = "service.SubscriptionExtender.ExtendTx"
	logger := e.log.With(slog.String("op", op), slog.String("product_id", productID))

	if identity.IsEmpty() {
		logger.Warn("order has no notification channel, subscription not recorded")
		return nil
	}

	sub, err := e.subs.FindSubscriptionTx(ctx, tx, productID, identity)
	switch {
	case err == nil:
		base := sub.PaidUntil
		if now.After(base) {
			base = now
		}
		paidUntil := base.Add(e.duration)
		if err := e.subs.ExtendSubscription(ctx, tx, sub.ID, paidUntil); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		logger.Info("subscription extended", slog.String("subscription_id", sub.ID), slog.Time("paid_until", paidUntil))
		return nil
	case errors.Is(err, storage.ErrSubscriptionNotFound):
		newSub := &models.Subscription{
			ID:        uuid.NewString(),
			ProductID: productID,
			NPub:      identity.NPub,
			Email:     identity.Email,
			CreatedAt: now,
			PaidUntil: now.Add(e.duration),
		}
		if err := e.subs.InsertSubscription(ctx, tx, newSub); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		logger.Info("subscription created", slog.String("subscription_id", newSub.ID), slog.Int64("number", newSub.Number))
		return nil
	default:
		return fmt.Errorf("%s: failed to find subscription: %w", op, err)
	}
}
