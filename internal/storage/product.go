package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

// CatalogStorage описывает чтение каталога. Движок товары не изменяет.
type CatalogStorage interface {
	// GetProductByID получает товар по идентификатору.
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	// GetProductsByIDs одним запросом получает товары; отсутствующие id просто не попадают в результат.
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error)
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) CatalogStorage {
	return &productRepository{db: db}
}

const productColumns = "id, name, price_amount, price_currency, shipping, type, created_at"

func scanProduct(row interface{ Scan(dest ...any) error }) (*models.Product, error) {
	var (
		p        models.Product
		amount   decimal.Decimal
		currency string
		typ      string
	)
	if err := row.Scan(&p.ID, &p.Name, &amount, &currency, &p.Shipping, &typ, &p.CreatedAt); err != nil {
		return nil, err
	}
	price, err := toMoney(amount, currency)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", p.ID, err)
	}
	p.Price = price
	p.Type = models.ProductType(typ)
	return &p, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) GetProductsByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	products := make(map[string]*models.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := r.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}
