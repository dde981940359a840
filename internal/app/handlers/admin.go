package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/linemk/shop-orders/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/shop-orders/internal/service"
)

// ConfirmPaymentRequest ручное подтверждение оплаты администратором
type ConfirmPaymentRequest struct {
	AmountPaid         *money.Money `json:"amountPaid" validate:"required"`
	BankTransferNumber *string      `json:"bankTransferNumber" validate:"omitempty,min=1,max=100"`
	TransactionID      string       `json:"transactionId" validate:"omitempty,max=200"`
}

type PaymentStatusResponse struct {
	Status string `json:"status"`
}

// ConfirmPaymentHandler обрабатывает запрос
// POST /api/admin/orders/{id}/payments/{paymentId}/confirm.
func ConfirmPaymentHandler(log *slog.Logger, payments service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ConfirmPaymentHandler"
		logger := adminLogger(log, r, op)

		orderID, paymentID, ok := paymentParams(w, r, logger)
		if !ok {
			return
		}

		var req ConfirmPaymentRequest
		if err := decodeJSON(r, &req); err != nil {
			logger.Warn("invalid request: decoding error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "invalid request")
			return
		}
		if req.BankTransferNumber != nil {
			trimmed := strings.TrimSpace(*req.BankTransferNumber)
			req.BankTransferNumber = &trimmed
		}
		req.TransactionID = strings.TrimSpace(req.TransactionID)
		if err := validate.Struct(req); err != nil {
			logger.Warn("invalid request: validation error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "validation error")
			return
		}

		details := models.PaymentMethodDetails{TransactionID: req.TransactionID}
		if req.BankTransferNumber != nil {
			details.BankTransferNumber = *req.BankTransferNumber
		}

		if err := payments.Confirm(r.Context(), orderID, paymentID, *req.AmountPaid, details); err != nil {
			writeServiceError(w, logger, "failed to confirm payment", err)
			return
		}

		logger.Info("payment confirmed by admin")
		writeJSON(w, logger, http.StatusOK, PaymentStatusResponse{Status: string(models.PaymentStatusPaid)})
	}
}

// CancelPaymentHandler обрабатывает запрос
// POST /api/admin/orders/{id}/payments/{paymentId}/cancel.
func CancelPaymentHandler(log *slog.Logger, payments service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CancelPaymentHandler"
		logger := adminLogger(log, r, op)

		orderID, paymentID, ok := paymentParams(w, r, logger)
		if !ok {
			return
		}

		if err := payments.Fail(r.Context(), orderID, paymentID, service.ReasonCanceled); err != nil {
			writeServiceError(w, logger, "failed to cancel payment", err)
			return
		}

		logger.Info("payment canceled by admin")
		writeJSON(w, logger, http.StatusOK, PaymentStatusResponse{Status: string(models.PaymentStatusCanceled)})
	}
}

func adminLogger(log *slog.Logger, r *http.Request, op string) *slog.Logger {
	admin, _ := jwtmiddleware.FromContext(r.Context())
	return log.With(slog.String("op", op), slog.String("admin", admin))
}

func paymentParams(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, string, bool) {
	orderID := chi.URLParam(r, "id")
	paymentID := chi.URLParam(r, "paymentId")
	if orderID == "" || paymentID == "" {
		writeError(w, logger, http.StatusBadRequest, "order id and payment id are required")
		return "", "", false
	}
	return orderID, paymentID, true
}
