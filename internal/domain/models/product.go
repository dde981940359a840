package models

import (
	"time"

	"github.com/linemk/shop-orders/internal/domain/money"
)

// ProductType тип товара в каталоге
type ProductType string

const (
	ProductTypeResource     ProductType = "resource"
	ProductTypeDonation     ProductType = "donation"
	ProductTypeSubscription ProductType = "subscription"
)

// Product представляет товар каталога. Для движка каталог доступен только на чтение.
type Product struct {
	ID        string
	Name      string
	Price     money.Money
	Shipping  bool // физический товар, требует адрес доставки
	Type      ProductType
	CreatedAt time.Time
}

// ProductSnapshot копия товара на момент оформления заказа, дальше не меняется
type ProductSnapshot struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Price    money.Money `json:"price"`
	Shipping bool        `json:"shipping"`
	Type     ProductType `json:"type"`
}

func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Shipping: p.Shipping,
		Type:     p.Type,
	}
}
