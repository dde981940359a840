package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/linemk/shop-orders/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// WebhookSecretHeader заголовок с общим секретом платежного провайдера
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookRequest уведомление провайдера об исходе платежа
type WebhookRequest struct {
	OrderID       string       `json:"orderId" validate:"required"`
	PaymentID     string       `json:"paymentId" validate:"required"`
	Status        string       `json:"status" validate:"required,oneof=paid canceled expired"`
	Amount        *money.Money `json:"amount" validate:"required_if=Status paid"`
	TransactionID string       `json:"transactionId" validate:"omitempty,max=200"`
}

// WebhookHandler обрабатывает запрос POST /api/webhooks/payments.
// Повторная доставка уже обработанного события отвечает 200.
func WebhookHandler(log *slog.Logger, payments service.PaymentService, secretHash string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.WebhookHandler"
		logger := log.With(slog.String("op", op))

		if !checkWebhookSecret(secretHash, r.Header.Get(WebhookSecretHeader)) {
			logger.Warn("webhook rejected: invalid secret")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req WebhookRequest
		if err := decodeJSON(r, &req); err != nil {
			logger.Warn("invalid request: decoding error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "invalid request")
			return
		}
		req.Status = strings.TrimSpace(req.Status)
		req.TransactionID = strings.TrimSpace(req.TransactionID)
		if err := validate.Struct(req); err != nil {
			logger.Warn("invalid request: validation error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "validation error")
			return
		}
		logger = logger.With(
			slog.String("order_id", req.OrderID),
			slog.String("payment_id", req.PaymentID),
			slog.String("status", req.Status),
		)

		var err error
		switch models.PaymentStatus(req.Status) {
		case models.PaymentStatusPaid:
			err = payments.Confirm(r.Context(), req.OrderID, req.PaymentID, *req.Amount,
				models.PaymentMethodDetails{TransactionID: req.TransactionID})
		default:
			err = payments.Fail(r.Context(), req.OrderID, req.PaymentID, req.Status)
		}
		if err != nil {
			if errors.Is(err, service.ErrPaymentNotPending) {
				logger.Info("webhook already processed")
				writeJSON(w, logger, http.StatusOK, PaymentStatusResponse{Status: "already processed"})
				return
			}
			writeServiceError(w, logger, "failed to process webhook", err)
			return
		}

		writeJSON(w, logger, http.StatusOK, PaymentStatusResponse{Status: req.Status})
	}
}

// без настроенного хэша вебхук отключен
func checkWebhookSecret(hash, secret string) bool {
	if hash == "" || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
