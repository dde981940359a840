package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/shop-orders/internal/domain/models"
)

var ErrCartNotFound = errors.New("cart not found")

// CartStorage описывает чтение корзины и её удаление при оформлении.
// Наполнение корзины выполняют внешние эндпоинты.
type CartStorage interface {
	// GetCartBySession возвращает корзину сессии вместе с позициями.
	GetCartBySession(ctx context.Context, sessionID string) (*models.Cart, error)
	// DeleteCartEffect удаляет корзину в транзакции создания заказа.
	DeleteCartEffect(cartID int64) TxEffect
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

func (r *cartRepository) GetCartBySession(ctx context.Context, sessionID string) (*models.Cart, error) {
	cart := &models.Cart{}
	row := r.db.QueryRowContext(ctx, "SELECT id, session_id FROM carts WHERE session_id = $1", sessionID)
	if err := row.Scan(&cart.ID, &cart.SessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT product_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY id", cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *cartRepository) DeleteCartEffect(cartID int64) TxEffect {
	return TxEffect{
		Name: "delete-cart",
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			// позиции удаляются каскадом
			res, err := tx.ExecContext(ctx, "DELETE FROM carts WHERE id = $1", cartID)
			if err != nil {
				return fmt.Errorf("failed to delete cart: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			// корзину уже удалил конкурентный запрос: заказ по ней создавать нельзя
			if affected == 0 {
				return ErrCartNotFound
			}
			return nil
		},
	}
}
