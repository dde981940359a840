package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/shop-orders/internal/service"
)

// OrderHandler обрабатывает запрос GET /api/orders/{id}.
func OrderHandler(log *slog.Logger, orders service.OrderFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrderHandler"
		logger := log.With(slog.String("op", op))

		orderID := chi.URLParam(r, "id")
		if orderID == "" {
			writeError(w, logger, http.StatusBadRequest, "order id is required")
			return
		}

		order, err := orders.GetOrder(r.Context(), orderID)
		if err != nil {
			writeServiceError(w, logger, "failed to get order", err)
			return
		}

		writeJSON(w, logger, http.StatusOK, newOrderView(order))
	}
}

type StartPaymentRequest struct {
	PaymentMethod string `json:"paymentMethod" validate:"required"`
}

type StartPaymentResponse struct {
	PaymentID string `json:"paymentId"`
}

// StartPaymentHandler обрабатывает запрос POST /api/orders/{id}/payments:
// новая попытка оплаты после отмененной или просроченной.
func StartPaymentHandler(log *slog.Logger, payments service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.StartPaymentHandler"
		logger := log.With(slog.String("op", op))

		orderID := chi.URLParam(r, "id")
		if orderID == "" {
			writeError(w, logger, http.StatusBadRequest, "order id is required")
			return
		}

		var req StartPaymentRequest
		if err := decodeJSON(r, &req); err != nil {
			logger.Warn("invalid request: decoding error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "invalid request")
			return
		}
		req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
		if err := validate.Struct(req); err != nil {
			logger.Warn("invalid request: validation error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "validation error")
			return
		}

		paymentID, err := payments.StartPayment(r.Context(), orderID, req.PaymentMethod)
		if err != nil {
			writeServiceError(w, logger, "failed to start payment", err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, StartPaymentResponse{PaymentID: paymentID})
	}
}
