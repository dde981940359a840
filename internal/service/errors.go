package service

import (
	"errors"

	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/linemk/shop-orders/internal/storage"
)

// ошибки оформления заказа
var (
	ErrEmptyCart                  = errors.New("cart is empty")
	ErrInvalidQuantity            = errors.New("quantity must be at least 1")
	ErrShippingRequired           = errors.New("shipping address is required for physical products")
	ErrNoPaymentMethodsConfigured = errors.New("no payment methods configured")
	ErrUnsupportedPaymentMethod   = errors.New("unsupported payment method")
)

// ошибки платежей
var (
	ErrOrderNotFound              = storage.ErrOrderNotFound
	ErrPaymentNotFound            = storage.ErrPaymentNotFound
	ErrPaymentNotPending          = storage.ErrPaymentNotPending
	ErrCurrencyMismatch           = money.ErrCurrencyMismatch
	ErrInsufficientAmount         = errors.New("paid amount is less than payment price")
	ErrBankTransferNumberRequired = errors.New("bank transfer number is required")
	ErrInvalidFailureReason       = errors.New("failure reason must be canceled or expired")
	ErrOrderAlreadyPaid           = errors.New("order is already paid")
	ErrPaymentAlreadyPending      = errors.New("order already has a pending payment")
	ErrTooManyPaymentAttempts     = errors.New("too many payment attempts")
)

// ошибки подписок
var (
	ErrSubscriptionNotFound = storage.ErrSubscriptionNotFound
	ErrProductNotFound      = storage.ErrProductNotFound
	ErrNoIdentityChannel    = errors.New("subscription has neither npub nor email")
	ErrNoPaidOrderFound     = errors.New("no paid order found for subscription")
	ErrRenewalNotAllowedYet = errors.New("subscription cannot be renewed yet")
)

// IsServerFault отличает ошибку целостности данных от ошибки клиента.
// Подписка ссылается на товар, которого нет в каталоге: это 500, а не 404.
func IsServerFault(err error) bool {
	return errors.Is(err, ErrProductNotFound)
}
