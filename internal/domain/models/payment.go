package models

import (
	"time"

	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/samber/mo"
)

// PaymentStatus состояние платежа. Из paid, canceled и expired переходов нет.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusCanceled PaymentStatus = "canceled"
	PaymentStatusExpired  PaymentStatus = "expired"
)

func (s PaymentStatus) Terminal() bool {
	return s != PaymentStatusPending
}

// PaymentMethodDetails данные, которые сохраняются при подтверждении
type PaymentMethodDetails struct {
	BankTransferNumber string `json:"bankTransferNumber,omitempty"`
	TransactionID      string `json:"transactionId,omitempty"`
}

func (d PaymentMethodDetails) IsEmpty() bool {
	return d.BankTransferNumber == "" && d.TransactionID == ""
}

// Payment попытка оплаты заказа
type Payment struct {
	ID            string
	OrderID       string
	Method        string
	Status        PaymentStatus
	Price         money.Money
	PaidAmount    mo.Option[money.Money]
	Details       mo.Option[PaymentMethodDetails]
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ExpiresAt     time.Time
}
