package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/storage"
)

// CartResolver превращает корзину сессии в снимок по текущему каталогу
type CartResolver interface {
	Resolve(ctx context.Context, sessionID string) (models.CartSnapshot, error)
}

type cartResolver struct {
	log     *slog.Logger
	carts   storage.CartStorage
	catalog storage.CatalogStorage
}

func NewCartResolver(log *slog.Logger, carts storage.CartStorage, catalog storage.CatalogStorage) CartResolver {
	return &cartResolver{
		log:     log,
		carts:   carts,
		catalog: catalog,
	}
}

// Resolve читает корзину и подставляет актуальные товары.
// Товары, удаленные из каталога, выбрасываются без ошибки.
func (r *cartResolver) Resolve(ctx context.Context, sessionID string) (models.CartSnapshot, error) {
	const op = "service.CartResolver.Resolve"
	logger := r.log.With(slog.String("op", op), slog.String("session", sessionID))

	cart, err := r.carts.GetCartBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrCartNotFound) {
			return models.CartSnapshot{}, fmt.Errorf("%s: %w", op, ErrEmptyCart)
		}
		logger.Error("failed to get cart", slog.Any("error", err))
		return models.CartSnapshot{}, fmt.Errorf("%s: failed to get cart: %w", op, err)
	}
	if len(cart.Items) == 0 {
		return models.CartSnapshot{}, fmt.Errorf("%s: %w", op, ErrEmptyCart)
	}

	ids := make([]string, 0, len(cart.Items))
	seen := make(map[string]struct{}, len(cart.Items))
	for _, item := range cart.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	products, err := r.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		logger.Error("failed to load products", slog.Any("error", err))
		return models.CartSnapshot{}, fmt.Errorf("%s: failed to load products: %w", op, err)
	}

	snapshot := models.CartSnapshot{CartID: cart.ID}
	for _, item := range cart.Items {
		product, ok := products[item.ProductID]
		if !ok {
			logger.Info("dropping cart item, product no longer exists", slog.String("product_id", item.ProductID))
			continue
		}
		snapshot.Items = append(snapshot.Items, models.OrderItem{
			Product:  product.Snapshot(),
			Quantity: item.Quantity,
		})
	}
	if len(snapshot.Items) == 0 {
		return models.CartSnapshot{}, fmt.Errorf("%s: %w", op, ErrEmptyCart)
	}

	return snapshot, nil
}
