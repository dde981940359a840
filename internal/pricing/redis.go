package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisSource читает курсы, которые публикует внешний сервис котировок.
// Ключ: rate:<FROM>:<TO>, значение: десятичная строка.
type RedisSource struct {
	client redis.Cmdable
}

func NewRedisSource(client redis.Cmdable) *RedisSource {
	return &RedisSource{client: client}
}

func rateKey(from, to money.Currency) string {
	return fmt.Sprintf("rate:%s:%s", from, to)
}

func (s *RedisSource) GetExchangeRate(ctx context.Context, from, to money.Currency) (decimal.Decimal, error) {
	return resolve(ctx, s, from, to)
}

func (s *RedisSource) lookup(ctx context.Context, from, to money.Currency) (decimal.Decimal, error) {
	value, err := s.client.Get(ctx, rateKey(from, to)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Decimal{}, ErrRateNotFound
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to read rate %s/%s: %w", from, to, err)
	}

	rate, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid rate %s/%s %q: %w", from, to, value, err)
	}
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("rate %s/%s: %w", from, to, money.ErrInvalidRate)
	}
	return rate, nil
}
