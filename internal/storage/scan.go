package storage

import (
	"context"
	"database/sql"

	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
)

// querier общее подмножество *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toMoney(amount decimal.Decimal, currency string) (money.Money, error) {
	c, err := money.ParseCurrency(currency)
	if err != nil {
		return money.Money{}, err
	}
	return money.New(amount, c), nil
}

func optString(ns sql.NullString) mo.Option[string] {
	if !ns.Valid || ns.String == "" {
		return mo.None[string]()
	}
	return mo.Some(ns.String)
}

func nullString(o mo.Option[string]) sql.NullString {
	v, ok := o.Get()
	return sql.NullString{String: v, Valid: ok}
}
