package handlers

import (
	"time"

	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/linemk/shop-orders/internal/service"
)

// OrderView представление заказа в API
type OrderView struct {
	ID              string                  `json:"id"`
	Items           []models.OrderItem      `json:"items"`
	Payments        []PaymentView           `json:"payments"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress,omitempty"`
	Notifications   NotificationsView       `json:"notifications"`
	CreatedAt       time.Time               `json:"createdAt"`
}

type PaymentView struct {
	ID            string                       `json:"id"`
	Method        string                       `json:"method"`
	Status        models.PaymentStatus         `json:"status"`
	Price         money.Money                  `json:"price"`
	PaidAmount    *money.Money                 `json:"paidAmount,omitempty"`
	Details       *models.PaymentMethodDetails `json:"details,omitempty"`
	FailureReason string                       `json:"failureReason,omitempty"`
	CreatedAt     time.Time                    `json:"createdAt"`
	ExpiresAt     time.Time                    `json:"expiresAt"`
}

type NotificationsView struct {
	PaymentStatusNPUB  string `json:"paymentStatusNPUB,omitempty"`
	PaymentStatusEmail string `json:"paymentStatusEmail,omitempty"`
}

type SubscriptionView struct {
	ID          string      `json:"id"`
	Number      int64       `json:"number"`
	ProductID   string      `json:"productId"`
	ProductName string      `json:"productName"`
	Price       money.Money `json:"price"`
	NPub        string      `json:"npub,omitempty"`
	Email       string      `json:"email,omitempty"`
	PaidUntil   time.Time   `json:"paidUntil"`
	CanRenew    bool        `json:"canRenew"`
}

func newOrderView(o *models.Order) OrderView {
	view := OrderView{
		ID:        o.ID,
		Items:     o.Items,
		Payments:  make([]PaymentView, 0, len(o.Payments)),
		CreatedAt: o.CreatedAt,
		Notifications: NotificationsView{
			PaymentStatusNPUB:  o.Notifications.PaymentStatus.NPub.OrEmpty(),
			PaymentStatusEmail: o.Notifications.PaymentStatus.Email.OrEmpty(),
		},
	}
	if addr, ok := o.ShippingAddress.Get(); ok {
		view.ShippingAddress = &addr
	}
	for _, p := range o.Payments {
		pv := PaymentView{
			ID:            p.ID,
			Method:        p.Method,
			Status:        p.Status,
			Price:         p.Price,
			FailureReason: p.FailureReason,
			CreatedAt:     p.CreatedAt,
			ExpiresAt:     p.ExpiresAt,
		}
		if paid, ok := p.PaidAmount.Get(); ok {
			pv.PaidAmount = &paid
		}
		if details, ok := p.Details.Get(); ok {
			pv.Details = &details
		}
		view.Payments = append(view.Payments, pv)
	}
	return view
}

func newSubscriptionView(v *service.SubscriptionView) SubscriptionView {
	return SubscriptionView{
		ID:          v.Subscription.ID,
		Number:      v.Subscription.Number,
		ProductID:   v.Product.ID,
		ProductName: v.Product.Name,
		Price:       v.Product.Price,
		NPub:        v.Subscription.NPub.OrEmpty(),
		Email:       v.Subscription.Email.OrEmpty(),
		PaidUntil:   v.Subscription.PaidUntil,
		CanRenew:    v.CanRenew,
	}
}
