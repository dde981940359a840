package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/service"
	"github.com/samber/mo"
)

// SessionHeader заголовок с идентификатором сессии покупателя
const SessionHeader = "X-Session-ID"

// ShippingAddressRequest адрес доставки, обязателен для корзин с физическими товарами
type ShippingAddressRequest struct {
	FirstName string `json:"firstName" validate:"required,min=1"`
	LastName  string `json:"lastName" validate:"required,min=1"`
	Address   string `json:"address" validate:"required,min=1"`
	City      string `json:"city" validate:"required,min=1"`
	State     string `json:"state"`
	Zip       string `json:"zip" validate:"required,min=1"`
	Country   string `json:"country" validate:"required,iso3166_1_alpha3"`
}

func (a *ShippingAddressRequest) trim() {
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.LastName = strings.TrimSpace(a.LastName)
	a.Address = strings.TrimSpace(a.Address)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.Zip = strings.TrimSpace(a.Zip)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
}

// CheckoutRequest входной JSON оформления заказа
type CheckoutRequest struct {
	PaymentMethod      string                  `json:"paymentMethod" validate:"required"`
	ShippingAddress    *ShippingAddressRequest `json:"shippingAddress"`
	PaymentStatusNPUB  string                  `json:"paymentStatusNPUB" validate:"omitempty,npub"`
	PaymentStatusEmail string                  `json:"paymentStatusEmail" validate:"omitempty,email"`
}

type CheckoutResponse struct {
	OrderID string `json:"orderId"`
}

// CheckoutHandler обрабатывает запрос POST /api/checkout.
func CheckoutHandler(log *slog.Logger, checkout service.CheckoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CheckoutHandler"
		logger := log.With(slog.String("op", op))

		sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
		if sessionID == "" {
			writeError(w, logger, http.StatusBadRequest, "missing session")
			return
		}

		var req CheckoutRequest
		if err := decodeJSON(r, &req); err != nil {
			logger.Warn("invalid request: decoding error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "invalid request")
			return
		}
		req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
		req.PaymentStatusNPUB = strings.TrimSpace(req.PaymentStatusNPUB)
		req.PaymentStatusEmail = strings.TrimSpace(req.PaymentStatusEmail)
		if req.ShippingAddress != nil {
			req.ShippingAddress.trim()
		}

		if err := validate.Struct(req); err != nil {
			logger.Warn("invalid request: validation error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "validation error")
			return
		}

		var shipping mo.Option[models.ShippingAddress]
		if a := req.ShippingAddress; a != nil {
			shipping = mo.Some(models.ShippingAddress{
				FirstName: a.FirstName,
				LastName:  a.LastName,
				Address:   a.Address,
				City:      a.City,
				State:     a.State,
				Zip:       a.Zip,
				Country:   a.Country,
			})
		}

		orderID, err := checkout.Checkout(r.Context(), service.CheckoutRequest{
			SessionID:       sessionID,
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: shipping,
			Notifications: models.Notifications{
				PaymentStatus: models.NotificationTarget{
					NPub:  mo.EmptyableToOption(req.PaymentStatusNPUB),
					Email: mo.EmptyableToOption(req.PaymentStatusEmail),
				},
			},
		})
		if err != nil {
			writeServiceError(w, logger, "checkout failed", err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, CheckoutResponse{OrderID: orderID})
	}
}
