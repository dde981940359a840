package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/shopspring/decimal"
)

// StaticSource курсы из конфигурации, ключ вида "BTC_EUR"
type StaticSource struct {
	rates map[string]decimal.Decimal
}

func NewStaticSource(raw map[string]string) (*StaticSource, error) {
	rates := make(map[string]decimal.Decimal, len(raw))
	for pair, value := range raw {
		parts := strings.Split(strings.ToUpper(strings.TrimSpace(pair)), "_")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid rate pair %q", pair)
		}
		from, err := money.ParseCurrency(parts[0])
		if err != nil {
			return nil, fmt.Errorf("rate pair %q: %w", pair, err)
		}
		to, err := money.ParseCurrency(parts[1])
		if err != nil {
			return nil, fmt.Errorf("rate pair %q: %w", pair, err)
		}
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("rate pair %q: invalid rate %q: %w", pair, value, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate pair %q: %w", pair, money.ErrInvalidRate)
		}
		rates[pairKey(from, to)] = rate
	}
	return &StaticSource{rates: rates}, nil
}

func (s *StaticSource) GetExchangeRate(ctx context.Context, from, to money.Currency) (decimal.Decimal, error) {
	return resolve(ctx, s, from, to)
}

func (s *StaticSource) lookup(_ context.Context, from, to money.Currency) (decimal.Decimal, error) {
	rate, ok := s.rates[pairKey(from, to)]
	if !ok {
		return decimal.Decimal{}, ErrRateNotFound
	}
	return rate, nil
}
