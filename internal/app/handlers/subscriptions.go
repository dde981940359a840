package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/shop-orders/internal/service"
)

// SubscriptionHandler обрабатывает запрос GET /api/subscriptions/{id}.
func SubscriptionHandler(log *slog.Logger, renewals service.RenewalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.SubscriptionHandler"
		logger := log.With(slog.String("op", op))

		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, logger, http.StatusBadRequest, "subscription id is required")
			return
		}

		view, err := renewals.GetSubscription(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, "failed to get subscription", err)
			return
		}

		writeJSON(w, logger, http.StatusOK, newSubscriptionView(view))
	}
}

type RenewResponse struct {
	OrderID string `json:"orderId"`
}

// RenewHandler обрабатывает запрос POST /api/subscriptions/{id}/renew.
func RenewHandler(log *slog.Logger, renewals service.RenewalService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RenewHandler"
		logger := log.With(slog.String("op", op))

		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, logger, http.StatusBadRequest, "subscription id is required")
			return
		}

		orderID, err := renewals.Renew(r.Context(), id, strings.TrimSpace(r.Header.Get(SessionHeader)))
		if err != nil {
			writeServiceError(w, logger, "failed to renew subscription", err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, RenewResponse{OrderID: orderID})
	}
}
