package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/storage"
	"github.com/samber/mo"
)

// CheckoutRequest данные формы оформления заказа
type CheckoutRequest struct {
	SessionID       string
	PaymentMethod   string
	ShippingAddress mo.Option[models.ShippingAddress]
	Notifications   models.Notifications
}

type CheckoutService interface {
	Checkout(ctx context.Context, req CheckoutRequest) (string, error)
}

type checkoutService struct {
	log      *slog.Logger
	resolver CartResolver
	carts    storage.CartStorage
	factory  OrderFactory
}

func NewCheckoutService(log *slog.Logger, resolver CartResolver, carts storage.CartStorage, factory OrderFactory) CheckoutService {
	return &checkoutService{
		log:      log,
		resolver: resolver,
		carts:    carts,
		factory:  factory,
	}
}

// Checkout создает заказ из корзины сессии. Корзина удаляется в той же
// транзакции: если удалить её не удалось, заказа тоже нет.
func (s *checkoutService) Checkout(ctx context.Context, req CheckoutRequest) (string, error) {
	const op = "service.CheckoutService.Checkout"
	logger := s.log.With(slog.String("op", op), slog.String("session", req.SessionID))

	snapshot, err := s.resolver.Resolve(ctx, req.SessionID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	orderID, err := s.factory.CreateOrder(ctx, snapshot.Items, req.PaymentMethod, CreateOrderOptions{
		SessionID:       req.SessionID,
		ShippingAddress: req.ShippingAddress,
		Notifications:   req.Notifications,
		CoCommit:        []storage.TxEffect{s.carts.DeleteCartEffect(snapshot.CartID)},
	})
	if err != nil {
		// корзину уже забрал параллельный checkout
		if errors.Is(err, storage.ErrCartNotFound) {
			logger.Warn("cart consumed concurrently", slog.Int64("cart_id", snapshot.CartID))
			return "", fmt.Errorf("%s: %w", op, ErrEmptyCart)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("checkout completed", slog.String("order_id", orderID))
	return orderID, nil
}
