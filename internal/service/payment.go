package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/linemk/shop-orders/internal/notify"
	"github.com/linemk/shop-orders/internal/pricing"
	"github.com/linemk/shop-orders/internal/storage"
	"github.com/samber/mo"
)

// причины неуспешной оплаты
const (
	ReasonCanceled = "canceled"
	ReasonExpired  = "expired"
)

const expireBatchSize = 100

// MethodBankTransfer способ оплаты, для которого подтверждение требует номер перевода
const MethodBankTransfer = "bankTransfer"

type PaymentService interface {
	// Confirm переводит pending-платеж в paid и продлевает подписки из заказа
	Confirm(ctx context.Context, orderID, paymentID string, amountPaid money.Money, details models.PaymentMethodDetails) error
	// Fail переводит pending-платеж в canceled или expired
	Fail(ctx context.Context, orderID, paymentID, reason string) error
	// StartPayment создает новую попытку оплаты после неуспешной
	StartPayment(ctx context.Context, orderID, method string) (string, error)
	// ExpireStale просрочивает pending-платежи с истекшим expires_at
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// PaymentPolicy ограничения попыток оплаты
type PaymentPolicy struct {
	PaymentTTL  time.Duration
	MaxAttempts int
}

type paymentService struct {
	log      *slog.Logger
	tx       storage.Transactor
	orders   storage.OrderStorage
	payments storage.PaymentStorage
	methods  MethodRegistry
	prices   pricing.Provider
	extender SubscriptionExtender
	events   *Events
	policy   PaymentPolicy
}

func NewPaymentService(
	log *slog.Logger,
	tx storage.Transactor,
	orders storage.OrderStorage,
	payments storage.PaymentStorage,
	methods MethodRegistry,
	prices pricing.Provider,
	extender SubscriptionExtender,
	events *Events,
	policy PaymentPolicy,
) PaymentService {
	return &paymentService{
		log:      log,
		tx:       tx,
		orders:   orders,
		payments: payments,
		methods:  methods,
		prices:   prices,
		extender: extender,
		events:   events,
		policy:   policy,
	}
}

// Confirm блокирует заказ и платеж, проверяет сумму и делает compare-and-swap
// статуса. Из конкурентных подтверждений одного платежа успешно только одно,
// остальные получают ErrPaymentNotPending.
func (s *paymentService) Confirm(ctx context.Context, orderID, paymentID string, amountPaid money.Money, details models.PaymentMethodDetails) error {
	const op = "service.PaymentService.Confirm"
	logger := s.log.With(slog.String("op", op), slog.String("order_id", orderID), slog.String("payment_id", paymentID))

	var (
		order   *models.Order
		payment *models.Payment
	)
	err := s.tx.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		order, payment, err = s.lockPending(ctx, tx, orderID, paymentID)
		if err != nil {
			return err
		}

		if amountPaid.Currency != payment.Price.Currency {
			return fmt.Errorf("%w: paid in %s, expected %s", ErrCurrencyMismatch, amountPaid.Currency, payment.Price.Currency)
		}
		cmp, err := amountPaid.Compare(payment.Price)
		if err != nil {
			return err
		}
		if cmp < 0 {
			return fmt.Errorf("%w: paid %s, price %s", ErrInsufficientAmount, amountPaid, payment.Price)
		}
		if payment.Method == MethodBankTransfer && strings.TrimSpace(details.BankTransferNumber) == "" {
			return ErrBankTransferNumberRequired
		}

		var detailsOpt mo.Option[models.PaymentMethodDetails]
		if !details.IsEmpty() {
			detailsOpt = mo.Some(details)
		}
		if err := s.payments.TransitionPayment(ctx, tx, storage.PaymentTransition{
			OrderID:    orderID,
			PaymentID:  paymentID,
			To:         models.PaymentStatusPaid,
			PaidAmount: mo.Some(amountPaid),
			Details:    detailsOpt,
		}); err != nil {
			return err
		}

		now := time.Now().UTC()
		extended := make(map[string]struct{})
		for _, item := range order.Items {
			if item.Product.Type != models.ProductTypeSubscription {
				continue
			}
			if _, ok := extended[item.Product.ID]; ok {
				continue
			}
			extended[item.Product.ID] = struct{}{}
			if err := s.extender.ExtendTx(ctx, tx, item.Product.ID, order.Notifications.PaymentStatus, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isPaymentClientError(err) {
			logger.Warn("payment not confirmed", slog.Any("error", err))
		} else {
			logger.Error("failed to confirm payment", slog.Any("error", err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("payment confirmed", slog.String("amount", amountPaid.String()))
	s.events.paymentTransition(models.PaymentStatusPaid)
	s.events.notifyBestEffort(ctx, order.Notifications.PaymentStatus, notify.EventPaymentConfirmed, notify.Payload{
		OrderID:   orderID,
		PaymentID: paymentID,
		Method:    payment.Method,
		Status:    models.PaymentStatusPaid,
		Price:     &amountPaid,
	})
	return nil
}

func (s *paymentService) Fail(ctx context.Context, orderID, paymentID, reason string) error {
	const op = "service.PaymentService.Fail"
	logger := s.log.With(slog.String("op", op), slog.String("order_id", orderID), slog.String("payment_id", paymentID))

	var to models.PaymentStatus
	switch reason {
	case ReasonCanceled:
		to = models.PaymentStatusCanceled
	case ReasonExpired:
		to = models.PaymentStatusExpired
	default:
		return fmt.Errorf("%s: %q: %w", op, reason, ErrInvalidFailureReason)
	}

	var (
		order   *models.Order
		payment *models.Payment
	)
	err := s.tx.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		order, payment, err = s.lockPending(ctx, tx, orderID, paymentID)
		if err != nil {
			return err
		}
		return s.payments.TransitionPayment(ctx, tx, storage.PaymentTransition{
			OrderID:   orderID,
			PaymentID: paymentID,
			To:        to,
			Reason:    reason,
		})
	})
	if err != nil {
		if isPaymentClientError(err) {
			logger.Warn("payment not failed", slog.Any("error", err))
		} else {
			logger.Error("failed to fail payment", slog.Any("error", err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("payment failed", slog.String("status", string(to)))
	s.events.paymentTransition(to)
	s.events.notifyBestEffort(ctx, order.Notifications.PaymentStatus, notify.EventPaymentFailed, notify.Payload{
		OrderID:   orderID,
		PaymentID: paymentID,
		Method:    payment.Method,
		Status:    to,
		Reason:    reason,
	})
	return nil
}

// lockPending блокирует сначала заказ, потом платеж: тот же порядок, что в StartPayment
func (s *paymentService) lockPending(ctx context.Context, tx *sql.Tx, orderID, paymentID string) (*models.Order, *models.Payment, error) {
	order, err := s.orders.LockOrderTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, nil, ErrPaymentNotFound
		}
		return nil, nil, err
	}
	payment, err := s.payments.LockPaymentTx(ctx, tx, orderID, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, nil, fmt.Errorf("%w: status %s", ErrPaymentNotPending, payment.Status)
	}
	return order, payment, nil
}

func (s *paymentService) StartPayment(ctx context.Context, orderID, method string) (string, error) {
	const op = "service.PaymentService.StartPayment"
	logger := s.log.With(slog.String("op", op), slog.String("order_id", orderID), slog.String("method", method))

	currency, err := s.methods.SettlementCurrency(method)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var payment *models.Payment
	err = s.tx.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		order, err := s.orders.LockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if _, paid := order.PaidPayment(); paid {
			return ErrOrderAlreadyPaid
		}
		for _, p := range order.Payments {
			if p.Status == models.PaymentStatusPending {
				return ErrPaymentAlreadyPending
			}
		}
		if s.policy.MaxAttempts > 0 && len(order.Payments) >= s.policy.MaxAttempts {
			return ErrTooManyPaymentAttempts
		}

		price, err := totalPrice(ctx, s.prices, order.Items, currency)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		payment = &models.Payment{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			Method:    method,
			Status:    models.PaymentStatusPending,
			Price:     price,
			CreatedAt: now,
			UpdatedAt: now,
			ExpiresAt: now.Add(s.policy.PaymentTTL),
		}
		return s.payments.InsertPayment(ctx, tx, payment)
	})
	if err != nil {
		if isPaymentClientError(err) {
			logger.Warn("payment not started", slog.Any("error", err))
		} else {
			logger.Error("failed to start payment", slog.Any("error", err))
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("payment started", slog.String("payment_id", payment.ID), slog.String("price", payment.Price.String()))
	return payment.ID, nil
}

// ExpireStale вызывается внешним таймером. Платеж, который успели
// подтвердить между выборкой и переводом, пропускается.
func (s *paymentService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	const op = "service.PaymentService.ExpireStale"
	logger := s.log.With(slog.String("op", op))

	stale, err := s.payments.ListExpiredPending(ctx, now, expireBatchSize)
	if err != nil {
		logger.Error("failed to list expired payments", slog.Any("error", err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var (
		expired int
		errs    []error
	)
	for _, p := range stale {
		err := s.Fail(ctx, p.OrderID, p.ID, ReasonExpired)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, ErrPaymentNotPending):
			logger.Info("payment already settled, skipping", slog.String("payment_id", p.ID))
		default:
			errs = append(errs, err)
		}
	}

	logger.Info("expired stale payments", slog.Int("expired", expired), slog.Int("candidates", len(stale)))
	return expired, errors.Join(errs...)
}

func isPaymentClientError(err error) bool {
	for _, target := range []error{
		ErrPaymentNotFound, ErrPaymentNotPending, ErrCurrencyMismatch, ErrInsufficientAmount,
		ErrBankTransferNumberRequired, ErrOrderNotFound, ErrOrderAlreadyPaid, ErrPaymentAlreadyPending, ErrTooManyPaymentAttempts,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
