package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
)

// коды ошибок postgres, после которых транзакцию можно повторить
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
)

// TxFunc выполняется внутри транзакции
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// TxEffect побочный эффект, который фиксируется в той же транзакции,
// что и основная запись (например, удаление корзины вместе с созданием заказа).
type TxEffect struct {
	Name  string
	Apply TxFunc
}

// Transactor описывает единицу работы: всё или ничего.
type Transactor interface {
	InTx(ctx context.Context, fn TxFunc) error
}

// RetryPolicy ограничивает повторы при конфликтах транзакций
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type txRunner struct {
	log    *slog.Logger
	db     *sql.DB
	policy RetryPolicy
}

func NewTxRunner(log *slog.Logger, db *sql.DB, policy RetryPolicy) Transactor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &txRunner{log: log, db: db, policy: policy}
}

// InTx открывает транзакцию, вызывает fn и коммитит.
// Ошибки сериализации и блокировок повторяются с экспоненциальной задержкой,
// остальные ошибки возвращаются сразу.
func (r *txRunner) InTx(ctx context.Context, fn TxFunc) error {
	const op = "storage.txRunner.InTx"
	logger := r.log.With(slog.String("op", op))

	attempt := 0
	operation := func() error {
		attempt++
		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			logger.Warn("transaction conflict, retrying", slog.Int("attempt", attempt), slog.Any("error", err))
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(operation, backoff.WithContext(r.backoff(), ctx))
}

func (r *txRunner) backoff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		eb.InitialInterval = r.policy.InitialInterval
	}
	if r.policy.MaxInterval > 0 {
		eb.MaxInterval = r.policy.MaxInterval
	}
	eb.MaxElapsedTime = 0
	return backoff.WithMaxRetries(eb, uint64(r.policy.MaxAttempts-1))
}

func (r *txRunner) runOnce(ctx context.Context, fn TxFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsRetryable сообщает, что ошибка вызвана конкурентной транзакцией
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
		return true
	}
	return false
}

// ApplyEffects применяет побочные эффекты по порядку, первый сбой прерывает транзакцию
func ApplyEffects(ctx context.Context, tx *sql.Tx, effects []TxEffect) error {
	for _, effect := range effects {
		if err := effect.Apply(ctx, tx); err != nil {
			return fmt.Errorf("effect %s: %w", effect.Name, err)
		}
	}
	return nil
}
