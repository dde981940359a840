package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/linemk/shop-orders/internal/domain/models"
	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPaymentNotPending = errors.New("payment is not pending")
)

// PaymentTransition перевод платежа из pending в конечное состояние
type PaymentTransition struct {
	OrderID    string
	PaymentID  string
	To         models.PaymentStatus
	PaidAmount mo.Option[money.Money]
	Details    mo.Option[models.PaymentMethodDetails]
	Reason     string
}

// PaymentStorage описывает методы для работы с платежами.
type PaymentStorage interface {
	// InsertPayment добавляет новую попытку оплаты заказа.
	InsertPayment(ctx context.Context, tx *sql.Tx, payment *models.Payment) error
	// LockPaymentTx блокирует строку платежа до конца транзакции.
	LockPaymentTx(ctx context.Context, tx *sql.Tx, orderID, paymentID string) (*models.Payment, error)
	// TransitionPayment меняет статус только если платеж всё ещё pending.
	TransitionPayment(ctx context.Context, tx *sql.Tx, t PaymentTransition) error
	// ListExpiredPending возвращает зависшие pending-платежи.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*models.Payment, error)
}

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) PaymentStorage {
	return &paymentRepository{db: db}
}

const paymentColumns = "id, order_id, method, status, price_amount, price_currency, paid_amount, details, failure_reason, created_at, updated_at, expires_at"

func scanPayment(row interface{ Scan(dest ...any) error }) (*models.Payment, error) {
	var (
		p        models.Payment
		status   string
		amount   decimal.Decimal
		currency string
		paid     decimal.NullDecimal
		details  []byte
		reason   sql.NullString
	)
	if err := row.Scan(&p.ID, &p.OrderID, &p.Method, &status, &amount, &currency, &paid,
		&details, &reason, &p.CreatedAt, &p.UpdatedAt, &p.ExpiresAt); err != nil {
		return nil, err
	}

	price, err := toMoney(amount, currency)
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", p.ID, err)
	}
	p.Price = price
	p.Status = models.PaymentStatus(status)
	p.FailureReason = reason.String

	if paid.Valid {
		p.PaidAmount = mo.Some(money.New(paid.Decimal, price.Currency))
	}
	if len(details) > 0 {
		var d models.PaymentMethodDetails
		if err := json.Unmarshal(details, &d); err != nil {
			return nil, fmt.Errorf("payment %s: invalid details: %w", p.ID, err)
		}
		p.Details = mo.Some(d)
	}
	return &p, nil
}

func (r *paymentRepository) InsertPayment(ctx context.Context, tx *sql.Tx, p *models.Payment) error {
	query := `INSERT INTO payments (id, order_id, method, status, price_amount, price_currency, created_at, updated_at, expires_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)`
	_, err := tx.ExecContext(ctx, query,
		p.ID, p.OrderID, p.Method, string(p.Status), p.Price.Amount, string(p.Price.Currency), p.CreatedAt, p.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) LockPaymentTx(ctx context.Context, tx *sql.Tx, orderID, paymentID string) (*models.Payment, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = $1 AND order_id = $2 FOR UPDATE", paymentID, orderID)
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// TransitionPayment compare-and-swap по статусу: проигравший конкурентный
// вызов не найдет строку в pending и получит ErrPaymentNotPending.
func (r *paymentRepository) TransitionPayment(ctx context.Context, tx *sql.Tx, t PaymentTransition) error {
	if !t.To.Terminal() {
		return fmt.Errorf("invalid target status %q", t.To)
	}

	var paid decimal.NullDecimal
	if amount, ok := t.PaidAmount.Get(); ok {
		paid = decimal.NullDecimal{Decimal: amount.Amount, Valid: true}
	}
	// jsonb передается строкой, отсутствие деталей: NULL
	var details any
	if d, ok := t.Details.Get(); ok && !d.IsEmpty() {
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		details = string(b)
	}
	reason := sql.NullString{String: t.Reason, Valid: t.Reason != ""}

	query := `UPDATE payments
	          SET status = $1, paid_amount = $2, details = $3, failure_reason = $4, updated_at = NOW()
	          WHERE id = $5 AND order_id = $6 AND status = 'pending'`
	res, err := tx.ExecContext(ctx, query, string(t.To), paid, details, reason, t.PaymentID, t.OrderID)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotPending
	}
	return nil
}

func (r *paymentRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*models.Payment, error) {
	query := "SELECT " + paymentColumns + ` FROM payments
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func loadPayments(ctx context.Context, q querier, orderID string) ([]models.Payment, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE order_id = $1 ORDER BY created_at, id", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}
