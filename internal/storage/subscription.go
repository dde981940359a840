package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/linemk/shop-orders/internal/domain/models"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

// SubscriptionStorage описывает методы для работы с подписками.
type SubscriptionStorage interface {
	GetSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error)
	// FindSubscriptionTx ищет подписку на товар по npub или email и блокирует её.
	// До поиска берется advisory-блокировка товара до конца транзакции, поэтому
	// конкурентные подтверждения не создадут две подписки на одного владельца.
	FindSubscriptionTx(ctx context.Context, tx *sql.Tx, productID string, identity models.NotificationTarget) (*models.Subscription, error)
	// InsertSubscription создает подписку, номер выдается последовательностью.
	InsertSubscription(ctx context.Context, tx *sql.Tx, sub *models.Subscription) error
	ExtendSubscription(ctx context.Context, tx *sql.Tx, id string, paidUntil time.Time) error
}

type subscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) SubscriptionStorage {
	return &subscriptionRepository{db: db}
}

const subscriptionColumns = "id, product_id, npub, email, number, created_at, paid_until"

const lockSubscriptionProductQuery = "SELECT pg_advisory_xact_lock(hashtext('subscriptions:' || $1))"

func scanSubscription(row interface{ Scan(dest ...any) error }) (*models.Subscription, error) {
	var (
		sub   models.Subscription
		npub  sql.NullString
		email sql.NullString
	)
	if err := row.Scan(&sub.ID, &sub.ProductID, &npub, &email, &sub.Number, &sub.CreatedAt, &sub.PaidUntil); err != nil {
		return nil, err
	}
	sub.NPub = optString(npub)
	sub.Email = optString(email)
	return &sub, nil
}

func (r *subscriptionRepository) GetSubscriptionByID(ctx context.Context, id string) (*models.Subscription, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+subscriptionColumns+" FROM subscriptions WHERE id = $1", id)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (r *subscriptionRepository) FindSubscriptionTx(ctx context.Context, tx *sql.Tx, productID string, identity models.NotificationTarget) (*models.Subscription, error) {
	filter := IdentityFilter{NPubColumn: "npub", EmailColumn: "email", Target: identity}
	clause, identityArgs, err := filter.Clause(2)
	if err != nil {
		return nil, err
	}

	// строки еще может не быть, FOR UPDATE ее не защитит
	if _, err := tx.ExecContext(ctx, lockSubscriptionProductQuery, productID); err != nil {
		return nil, fmt.Errorf("failed to lock subscriptions of product: %w", err)
	}

	query := "SELECT " + subscriptionColumns + " FROM subscriptions WHERE product_id = $1 AND " + clause +
		" ORDER BY paid_until DESC LIMIT 1 FOR UPDATE"
	args := append([]any{productID}, identityArgs...)

	sub, err := scanSubscription(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (r *subscriptionRepository) InsertSubscription(ctx context.Context, tx *sql.Tx, sub *models.Subscription) error {
	query := `INSERT INTO subscriptions (id, product_id, npub, email, created_at, paid_until)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING number`
	err := tx.QueryRowContext(ctx, query,
		sub.ID, sub.ProductID, nullString(sub.NPub), nullString(sub.Email), sub.CreatedAt, sub.PaidUntil,
	).Scan(&sub.Number)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) ExtendSubscription(ctx context.Context, tx *sql.Tx, id string, paidUntil time.Time) error {
	res, err := tx.ExecContext(ctx, "UPDATE subscriptions SET paid_until = $1 WHERE id = $2", paidUntil, id)
	if err != nil {
		return fmt.Errorf("failed to extend subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
