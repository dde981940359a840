package models

import (
	"time"

	"github.com/samber/mo"
)

// OrderItem позиция заказа со снимком товара
type OrderItem struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

// ShippingAddress адрес доставки, нужен только для физических товаров
type ShippingAddress struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
}

// Order неизменяемая запись заказа; меняются только статусы платежей.
// Заказы никогда не удаляются.
type Order struct {
	ID              string
	SessionID       string
	Items           []OrderItem
	Payments        []Payment
	ShippingAddress mo.Option[ShippingAddress]
	Notifications   Notifications
	CreatedAt       time.Time
}

// Payment ищет платеж заказа по id
func (o *Order) Payment(id string) (*Payment, bool) {
	for i := range o.Payments {
		if o.Payments[i].ID == id {
			return &o.Payments[i], true
		}
	}
	return nil, false
}

// PaidPayment возвращает последний оплаченный платеж
func (o *Order) PaidPayment() (*Payment, bool) {
	for i := len(o.Payments) - 1; i >= 0; i-- {
		if o.Payments[i].Status == PaymentStatusPaid {
			return &o.Payments[i], true
		}
	}
	return nil, false
}

// IsDigital true, если в заказе нет физических товаров
func IsDigital(items []OrderItem) bool {
	for _, item := range items {
		if item.Product.Shipping {
			return false
		}
	}
	return true
}
