package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/linemk/shop-orders/internal/pricing"
	"github.com/linemk/shop-orders/internal/service"
)

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

type errorStatus struct {
	err    error
	status int
}

// порядок важен: первое совпадение по errors.Is определяет статус
var errorStatuses = []errorStatus{
	{service.ErrEmptyCart, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrShippingRequired, http.StatusBadRequest},
	{service.ErrUnsupportedPaymentMethod, http.StatusBadRequest},
	{service.ErrInsufficientAmount, http.StatusBadRequest},
	{service.ErrBankTransferNumberRequired, http.StatusBadRequest},
	{service.ErrCurrencyMismatch, http.StatusBadRequest},
	{service.ErrInvalidFailureReason, http.StatusBadRequest},
	{service.ErrNoIdentityChannel, http.StatusBadRequest},
	{money.ErrUnsupportedCurrency, http.StatusBadRequest},
	{money.ErrNegativeAmount, http.StatusBadRequest},
	{service.ErrOrderNotFound, http.StatusNotFound},
	{service.ErrPaymentNotFound, http.StatusNotFound},
	{service.ErrSubscriptionNotFound, http.StatusNotFound},
	{service.ErrNoPaidOrderFound, http.StatusNotFound},
	{service.ErrPaymentNotPending, http.StatusConflict},
	{service.ErrOrderAlreadyPaid, http.StatusConflict},
	{service.ErrPaymentAlreadyPending, http.StatusConflict},
	{service.ErrTooManyPaymentAttempts, http.StatusConflict},
	{service.ErrRenewalNotAllowedYet, http.StatusConflict},
	{service.ErrNoPaymentMethodsConfigured, http.StatusServiceUnavailable},
	{pricing.ErrRateNotFound, http.StatusServiceUnavailable},
}

// StatusFor сопоставляет ошибку сервиса HTTP-статусу и публичному сообщению.
// Нарушения целостности и неизвестные ошибки отдаются как 500 без подробностей.
func StatusFor(err error) (int, string) {
	if service.IsServerFault(err) {
		return http.StatusInternalServerError, "internal server error"
	}
	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			return es.status, es.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeServiceError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status, public := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, slog.Any("error", err))
	} else {
		logger.Warn(msg, slog.Any("error", err))
	}
	writeJSON(w, logger, status, ErrorResponse{Error: public})
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, public string) {
	writeJSON(w, logger, status, ErrorResponse{Error: public})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
