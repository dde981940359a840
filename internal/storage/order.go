package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrder вставляет заказ и его позиции в транзакции. Платежи пишет PaymentStorage.
	CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error
	// GetOrderByID возвращает заказ с позициями и платежами.
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	// LockOrderTx блокирует заказ и читает его в транзакции.
	LockOrderTx(ctx context.Context, tx *sql.Tx, id string) (*models.Order, error)
	// FindLatestPaidOrder ищет последний оплаченный заказ с товаром для любого из каналов identity.
	FindLatestPaidOrder(ctx context.Context, productID string, identity models.NotificationTarget) (*models.Order, error)
}

// orderRepository конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

// CreateOrder вставляет новый заказ в таблицы orders и order_items.
func (r *orderRepository) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	var shipping any
	if addr, ok := order.ShippingAddress.Get(); ok {
		b, err := json.Marshal(addr)
		if err != nil {
			return fmt.Errorf("failed to encode shipping address: %w", err)
		}
		shipping = string(b)
	}

	query := `INSERT INTO orders (id, session_id, shipping_address, notify_npub, notify_email, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := tx.ExecContext(ctx, query,
		order.ID,
		order.SessionID,
		shipping,
		nullString(order.Notifications.PaymentStatus.NPub),
		nullString(order.Notifications.PaymentStatus.Email),
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, position, product_id, product_name, price_amount, price_currency, shipping, product_type, quantity)
	              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for i, item := range order.Items {
		p := item.Product
		if _, err := tx.ExecContext(ctx, itemQuery,
			order.ID, i, p.ID, p.Name, p.Price.Amount, string(p.Price.Currency), p.Shipping, string(p.Type), item.Quantity,
		); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	return loadOrder(ctx, r.db, id, false)
}

func (r *orderRepository) LockOrderTx(ctx context.Context, tx *sql.Tx, id string) (*models.Order, error) {
	return loadOrder(ctx, tx, id, true)
}

func (r *orderRepository) FindLatestPaidOrder(ctx context.Context, productID string, identity models.NotificationTarget) (*models.Order, error) {
	filter := IdentityFilter{
		NPubColumn:  "o.notify_npub",
		EmailColumn: "o.notify_email",
		Target:      identity,
	}
	clause, identityArgs, err := filter.Clause(2)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT o.id
		FROM orders o
		WHERE EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.product_id = $1)
		  AND EXISTS (SELECT 1 FROM payments p WHERE p.order_id = o.id AND p.status = 'paid')
		  AND ` + clause + `
		ORDER BY o.created_at DESC
		LIMIT 1`
	args := append([]any{productID}, identityArgs...)

	var orderID string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find paid order: %w", err)
	}
	return loadOrder(ctx, r.db, orderID, false)
}

func loadOrder(ctx context.Context, q querier, id string, lock bool) (*models.Order, error) {
	query := "SELECT id, session_id, shipping_address, notify_npub, notify_email, created_at FROM orders WHERE id = $1"
	if lock {
		query += " FOR UPDATE"
	}

	var (
		order    models.Order
		shipping []byte
		npub     sql.NullString
		email    sql.NullString
	)
	row := q.QueryRowContext(ctx, query, id)
	if err := row.Scan(&order.ID, &order.SessionID, &shipping, &npub, &email, &order.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if len(shipping) > 0 {
		var addr models.ShippingAddress
		if err := json.Unmarshal(shipping, &addr); err != nil {
			return nil, fmt.Errorf("order %s: invalid shipping address: %w", id, err)
		}
		order.ShippingAddress = mo.Some(addr)
	}
	order.Notifications.PaymentStatus = models.NotificationTarget{
		NPub:  optString(npub),
		Email: optString(email),
	}

	items, err := loadOrderItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	payments, err := loadPayments(ctx, q, id)
	if err != nil {
		return nil, err
	}
	order.Payments = payments

	return &order, nil
}

func loadOrderItems(ctx context.Context, q querier, orderID string) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, product_name, price_amount, price_currency, shipping, product_type, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var (
			item     models.OrderItem
			amount   decimal.Decimal
			currency string
			typ      string
		)
		if err := rows.Scan(&item.Product.ID, &item.Product.Name, &amount, &currency,
			&item.Product.Shipping, &typ, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		price, err := toMoney(amount, currency)
		if err != nil {
			return nil, err
		}
		item.Product.Price = price
		item.Product.Type = models.ProductType(typ)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
